package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/frame-review/internal/platform/api"
	"github.com/example/frame-review/internal/platform/httpserver"
	"github.com/example/frame-review/services/review/internal/store"
)

type authorReq struct {
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

type anchorReq struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

type createCommentReq struct {
	Text      string     `json:"text"`
	Timestamp *float64   `json:"timestamp"`
	User      *authorReq `json:"user,omitempty"`
	Anchor    *anchorReq `json:"anchor,omitempty"`
}

type createReplyReq struct {
	Text string     `json:"text"`
	User *authorReq `json:"user,omitempty"`
}

type updateCommentReq struct {
	Text   *string    `json:"text,omitempty"`
	User   *authorReq `json:"user,omitempty"`
	Anchor *anchorReq `json:"anchor,omitempty"`
}

type threadResp struct {
	Comment store.Comment   `json:"comment"`
	Replies []store.Comment `json:"replies"`
}

func (a *authorReq) author() *store.Author {
	if a == nil {
		return nil
	}
	return &store.Author{Name: a.Name, Avatar: a.Avatar}
}

func (a *anchorReq) anchor() *store.Anchor {
	if a == nil {
		return nil
	}
	return &store.Anchor{X: a.X, Y: a.Y, Color: a.Color}
}

// ListComments returns the whole collection in canonical order, or the
// comments near ?t= within ?tolerance=. ?top_level=true drops replies.
func ListComments(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		t, hasT, ok := queryFloat(w, r, rid, "t")
		if !ok {
			return
		}
		tol, hasTol, ok := queryFloat(w, r, rid, "tolerance")
		if !ok {
			return
		}
		if !hasTol {
			tol = -1
		}
		topLevel := queryBool(r, "top_level")

		var out []store.Comment
		switch {
		case hasT && topLevel:
			out = cs.TopLevelForTimestamp(t, tol)
		case hasT:
			out = cs.ForTimestamp(t, tol)
		case topLevel:
			out = cs.TopLevel()
		default:
			out = cs.All()
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"comments": out})
	}
}

func CreateComment(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req createCommentReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			api.BadRequest(w, "EMPTY_TEXT", "text must not be empty", rid, map[string]any{"field": "text"})
			return
		}
		if req.Timestamp == nil {
			api.BadRequest(w, "MISSING_TIMESTAMP", "timestamp is required", rid, map[string]any{"field": "timestamp"})
			return
		}

		c, ok := cs.AddComment(req.Text, *req.Timestamp, req.User.author(), req.Anchor.anchor())
		if !ok {
			api.Unprocessable(w, "INVALID_COMMENT", "comment rejected", rid, nil)
			return
		}
		api.WriteJSON(w, http.StatusCreated, c)
	}
}

func AnchoredComments(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]any{"comments": cs.Anchored()})
	}
}

func CommentStats(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, cs.Stats())
	}
}

// GetThread returns a comment with its replies.
func GetThread(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		c, replies, ok := cs.Thread(chi.URLParam(r, "id"))
		if !ok {
			api.NotFound(w, "NOT_FOUND", "comment not found", rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, threadResp{Comment: c, Replies: replies})
	}
}

func UpdateComment(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := chi.URLParam(r, "id")

		var req updateCommentReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if req.Text != nil && strings.TrimSpace(*req.Text) == "" {
			api.BadRequest(w, "EMPTY_TEXT", "text must not be empty", rid, map[string]any{"field": "text"})
			return
		}
		if _, exists := cs.Get(id); !exists {
			api.NotFound(w, "NOT_FOUND", "comment not found", rid)
			return
		}

		c, ok := cs.UpdateComment(id, store.CommentUpdate{
			Text:   req.Text,
			Author: req.User.author(),
			Anchor: req.Anchor.anchor(),
		})
		if !ok {
			api.Unprocessable(w, "INVALID_UPDATE", "update rejected", rid, nil)
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// DeleteComment removes a comment and, for a top-level one, its replies.
func DeleteComment(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		if !cs.RemoveComment(chi.URLParam(r, "id")) {
			api.NotFound(w, "NOT_FOUND", "comment not found", rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ClearComments(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		cs.ClearAll()
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListReplies(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := chi.URLParam(r, "id")
		if _, ok := cs.Get(id); !ok {
			api.NotFound(w, "NOT_FOUND", "comment not found", rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"replies": cs.Replies(id)})
	}
}

func CreateReply(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id := chi.URLParam(r, "id")

		var req createReplyReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			api.BadRequest(w, "EMPTY_TEXT", "text must not be empty", rid, map[string]any{"field": "text"})
			return
		}
		if _, ok := cs.Get(id); !ok {
			api.NotFound(w, "NOT_FOUND", "comment not found", rid)
			return
		}

		c, ok := cs.AddReply(id, req.Text, req.User.author())
		if !ok {
			api.Unprocessable(w, "INVALID_REPLY", "reply rejected", rid, nil)
			return
		}
		api.WriteJSON(w, http.StatusCreated, c)
	}
}

// DeleteReply removes a single reply by id.
func DeleteReply(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		replyID := chi.URLParam(r, "reply_id")
		if c, ok := cs.Get(replyID); !ok || c.ParentID != chi.URLParam(r, "id") || !cs.RemoveReply(replyID) {
			api.NotFound(w, "NOT_FOUND", "reply not found", rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

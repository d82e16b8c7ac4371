package handlers

import (
	"net/http"
	"strings"

	"github.com/example/frame-review/internal/platform/api"
	"github.com/example/frame-review/internal/platform/httpserver"
	"github.com/example/frame-review/services/review/internal/drawing"
	"github.com/example/frame-review/services/review/internal/store"
	"github.com/example/frame-review/services/review/internal/surface"
)

type sessionResp struct {
	Composer        surface.Composer `json:"composer"`
	CurrentComments []store.Comment  `json:"currentComments"`
	VisibleStrokes  []store.Stroke   `json:"visibleStrokes"`
	Drawing         bool             `json:"drawing"`
	Draft           []store.Point    `json:"draft"`
}

type openComposerReq struct {
	Anchored bool    `json:"anchored"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type submitComposerReq struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

type strokeReq struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

type seekReq struct {
	Timestamp int64 `json:"timestamp"`
}

// GetSession returns what the review screen overlays at the live position.
// ?spacing= interpolates stroke and draft paths to at most that distance
// between consecutive points.
func GetSession(s *surface.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		spacing, smooth, ok := queryFloat(w, r, rid, "spacing")
		if !ok {
			return
		}
		if smooth && spacing <= 0 {
			api.BadRequest(w, "INVALID_QUERY", "spacing must be > 0", rid, map[string]any{"param": "spacing"})
			return
		}

		draft := s.DraftStroke()
		strokes := s.VisibleStrokes()
		if smooth {
			draft = drawing.Interpolate(draft, spacing)
			strokes = drawing.InterpolateStrokes(strokes, spacing)
		}
		if draft == nil {
			draft = drawing.Path{}
		}
		api.WriteJSON(w, http.StatusOK, sessionResp{
			Composer:        s.Composer(),
			CurrentComments: s.CurrentComments(),
			VisibleStrokes:  strokes,
			Drawing:         s.Drawing(),
			Draft:           draft,
		})
	}
}

// OpenComposer fixes the timestamp of the next comment.
func OpenComposer(s *surface.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req openComposerReq
		if r.ContentLength != 0 && !decodeJSON(w, r, rid, &req) {
			return
		}
		if req.Anchored {
			api.WriteJSON(w, http.StatusOK, s.OpenAnchoredComposer(req.X, req.Y))
			return
		}
		api.WriteJSON(w, http.StatusOK, s.OpenComposer())
	}
}

func CloseComposer(s *surface.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.CloseComposer()
		w.WriteHeader(http.StatusNoContent)
	}
}

// SubmitComposer adds the composed comment at the captured timestamp.
func SubmitComposer(s *surface.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req submitComposerReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			api.BadRequest(w, "EMPTY_TEXT", "text must not be empty", rid, map[string]any{"field": "text"})
			return
		}

		var (
			c  store.Comment
			ok bool
		)
		if s.Composer().Anchored {
			c, ok = s.SubmitAnchored(req.Text, req.Color)
		} else {
			c, ok = s.SubmitComment(req.Text)
		}
		if !ok {
			api.Unprocessable(w, "INVALID_COMMENT", "comment rejected", rid, nil)
			return
		}
		api.WriteJSON(w, http.StatusCreated, c)
	}
}

// SessionStroke drives the drawing gesture on the paused frame.
func SessionStroke(s *surface.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req strokeReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		pt := store.Point{X: req.X, Y: req.Y}
		switch strings.ToLower(strings.TrimSpace(req.Phase)) {
		case "begin":
			if !s.BeginStroke(pt) {
				api.WriteError(w, http.StatusConflict, "NOT_PAUSED", "drawing requires a paused video", rid, nil)
				return
			}
		case "move":
			if !s.ExtendStroke(pt) {
				api.WriteError(w, http.StatusConflict, "NO_STROKE", "no stroke in progress", rid, nil)
				return
			}
		case "end":
			st, ok := s.EndStroke(req.Color)
			if !ok {
				api.WriteError(w, http.StatusConflict, "NO_STROKE", "no stroke in progress", rid, nil)
				return
			}
			api.WriteJSON(w, http.StatusCreated, st)
			return
		case "cancel":
			s.CancelStroke()
		default:
			api.BadRequest(w, "UNKNOWN_PHASE", "unknown stroke phase", rid, map[string]any{"phase": req.Phase})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionSeek jumps to a comment timestamp.
func SessionSeek(s *surface.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req seekReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if req.Timestamp < 0 {
			api.BadRequest(w, "INVALID_TIMESTAMP", "timestamp must be >= 0", rid, nil)
			return
		}
		s.SeekTo(req.Timestamp)
		w.WriteHeader(http.StatusNoContent)
	}
}

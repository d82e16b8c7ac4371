// Package store owns the review annotations: timestamped comments with
// threaded replies and spatial anchors, free-hand strokes, and viewer
// preferences. Each store is the only writer of its collection and of the
// blob that persists it.
package store

import "time"

// AnonymousName is the author name used when none is supplied.
const AnonymousName = "Anonymous User"

// DefaultAnchorColor is the marker colour of anchored comments created
// without one.
const DefaultAnchorColor = "#ff4444"

// Author identifies who wrote a comment.
type Author struct {
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

// Anchor places a top-level comment on the video surface.
type Anchor struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color,omitempty"`
}

// Comment is a timestamped note on the video timeline. The JSON shape is the
// persisted blob format.
type Comment struct {
	ID         string     `json:"id"`
	Timestamp  int64      `json:"timestamp"` // whole seconds
	Text       string     `json:"text"`
	Author     Author     `json:"user"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	IsReply    bool       `json:"isReply"`
	ParentID   string     `json:"parentCommentId,omitempty"`
	IsAnchored bool       `json:"isAnchored,omitempty"`
	X          float64    `json:"x,omitempty"`
	Y          float64    `json:"y,omitempty"`
	Color      string     `json:"color,omitempty"`
}

// Anchor returns the spatial anchor of an anchored comment.
func (c Comment) Anchor() (Anchor, bool) {
	if !c.IsAnchored {
		return Anchor{}, false
	}
	return Anchor{X: c.X, Y: c.Y, Color: c.Color}, true
}

// CommentUpdate replaces the non-nil fields of a comment.
type CommentUpdate struct {
	Text   *string
	Author *Author
	// Anchor moves or recolours an anchored comment, or anchors a plain
	// top-level one. Ignored for replies.
	Anchor *Anchor
}

// Stats summarises the comment collection.
type Stats struct {
	TopLevelCount            int `json:"topLevelCount"`
	ReplyCount               int `json:"replyCount"`
	TotalInteractions        int `json:"totalInteractions"`
	DistinctTimestampBuckets int `json:"distinctTimestampBuckets"`
}

// Hooks are optional change notifications. Every slot may be nil; bound
// slots are called after the in-memory state changed, outside store locks.
type Hooks struct {
	// OnChange receives the full collection in canonical order.
	OnChange func(all []Comment)
	// OnCommentAdded fires for new comments and replies.
	OnCommentAdded func(c Comment)
	// OnCommentsRemoved lists every id a delete or clear removed.
	OnCommentsRemoved func(ids []string)
}

// CommentStore is the mutation and query surface of the annotation store.
type CommentStore interface {
	AddComment(text string, timestamp float64, author *Author, anchor *Anchor) (Comment, bool)
	AddReply(parentID, text string, author *Author) (Comment, bool)
	UpdateComment(id string, u CommentUpdate) (Comment, bool)
	RemoveComment(id string) bool
	RemoveReply(id string) bool
	ClearAll()

	Get(id string) (Comment, bool)
	All() []Comment
	TopLevel() []Comment
	Anchored() []Comment
	Replies(parentID string) []Comment
	Thread(id string) (Comment, []Comment, bool)
	ForTimestamp(t, tolerance float64) []Comment
	TopLevelForTimestamp(t, tolerance float64) []Comment
	Stats() Stats
}

package store

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/example/frame-review/services/review/internal/kv"
	"github.com/example/frame-review/services/review/internal/persist"
)

var _ CommentStore = (*AnnotationStore)(nil)

// AnnotationStore owns the comment collection: top-level comments, their
// replies and anchored comments, kept in canonical threaded order.
//
// Mutations change memory synchronously and hand a full snapshot to a
// persist.Writer; they never wait for or report storage errors.
type AnnotationStore struct {
	opts   Options
	key    string
	kv     kv.Store
	writer *persist.Writer
	hooks  Hooks
	log    *zap.Logger

	mu       sync.RWMutex
	comments []Comment
	// version counts mutations so Load can tell whether it raced one.
	version uint64
}

// NewAnnotationStore creates an empty store bound to the comments key of
// opts.Namespace. Call Load to populate it from storage.
func NewAnnotationStore(store kv.Store, opts Options, hooks Hooks) *AnnotationStore {
	opts = opts.withDefaults()
	key := KeysFor(opts.Namespace).Comments
	log := opts.Logger.With(zap.String("store", "comments"))
	return &AnnotationStore{
		opts:   opts,
		key:    key,
		kv:     store,
		writer: persist.NewWriter(store, key, persist.Options{Timeout: opts.WriteTimeout, Logger: log}),
		hooks:  hooks,
		log:    log,
	}
}

// Key returns the storage key of the comment blob.
func (s *AnnotationStore) Key() string { return s.key }

// AddComment creates a top-level comment at floor(timestamp). A non-nil
// anchor makes it an anchored comment. Blank or over-long text and invalid
// timestamps are rejected without any change.
func (s *AnnotationStore) AddComment(text string, timestamp float64, author *Author, anchor *Anchor) (Comment, bool) {
	text, ok := s.cleanText(text)
	if !ok {
		return Comment{}, false
	}
	ts, ok := wholeSeconds(timestamp)
	if !ok {
		s.log.Debug("comment rejected", zap.Float64("timestamp", timestamp))
		return Comment{}, false
	}

	c := Comment{
		ID:        s.opts.NewID(),
		Timestamp: ts,
		Text:      text,
		Author:    authorOrAnonymous(author),
		CreatedAt: s.opts.Now(),
	}
	if anchor != nil {
		if !finite(anchor.X, anchor.Y) {
			return Comment{}, false
		}
		c.IsAnchored = true
		c.X, c.Y = anchor.X, anchor.Y
		c.Color = anchorColor(anchor.Color)
	}

	s.mu.Lock()
	s.comments = append(s.comments, c)
	sortComments(s.comments)
	all := s.commitLocked()
	s.mu.Unlock()

	s.notifyChange(all)
	if s.hooks.OnCommentAdded != nil {
		s.hooks.OnCommentAdded(c)
	}
	return c, true
}

// AddReply attaches a reply to parentID. The reply takes the parent's
// timestamp. Replying to a reply attaches to that reply's parent, so threads
// stay one level deep. An unknown parent is a no-op.
func (s *AnnotationStore) AddReply(parentID, text string, author *Author) (Comment, bool) {
	text, ok := s.cleanText(text)
	if !ok {
		return Comment{}, false
	}

	s.mu.Lock()
	parent, ok := s.rootLocked(parentID)
	if !ok {
		s.mu.Unlock()
		s.log.Debug("reply to unknown parent", zap.String("parent_id", parentID))
		return Comment{}, false
	}
	c := Comment{
		ID:        s.opts.NewID(),
		Timestamp: parent.Timestamp,
		Text:      text,
		Author:    authorOrAnonymous(author),
		CreatedAt: s.opts.Now(),
		IsReply:   true,
		ParentID:  parent.ID,
	}
	s.comments = append(s.comments, c)
	sortComments(s.comments)
	all := s.commitLocked()
	s.mu.Unlock()

	s.notifyChange(all)
	if s.hooks.OnCommentAdded != nil {
		s.hooks.OnCommentAdded(c)
	}
	return c, true
}

// UpdateComment applies the non-nil fields of u and stamps UpdatedAt.
// Unknown ids and invalid fields leave the comment unchanged.
func (s *AnnotationStore) UpdateComment(id string, u CommentUpdate) (Comment, bool) {
	var text string
	if u.Text != nil {
		t, ok := s.cleanText(*u.Text)
		if !ok {
			return Comment{}, false
		}
		text = t
	}
	if u.Anchor != nil && !finite(u.Anchor.X, u.Anchor.Y) {
		return Comment{}, false
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Comment{}, false
	}
	c := s.comments[i]
	if u.Anchor != nil && c.IsReply {
		s.mu.Unlock()
		return Comment{}, false
	}
	if u.Text != nil {
		c.Text = text
	}
	if u.Author != nil {
		c.Author = authorOrAnonymous(u.Author)
	}
	if u.Anchor != nil {
		c.IsAnchored = true
		c.X, c.Y = u.Anchor.X, u.Anchor.Y
		c.Color = anchorColor(u.Anchor.Color)
	}
	now := s.opts.Now()
	c.UpdatedAt = &now
	s.comments[i] = c
	all := s.commitLocked()
	s.mu.Unlock()

	s.notifyChange(all)
	return c, true
}

// RemoveComment deletes the comment with id. Deleting a top-level comment
// also deletes its replies.
func (s *AnnotationStore) RemoveComment(id string) bool {
	return s.remove(id, false)
}

// RemoveReply deletes a single reply. It declines ids of top-level comments.
func (s *AnnotationStore) RemoveReply(id string) bool {
	return s.remove(id, true)
}

func (s *AnnotationStore) remove(id string, repliesOnly bool) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 || (repliesOnly && !s.comments[i].IsReply) {
		s.mu.Unlock()
		return false
	}
	target := s.comments[i]

	removed := []string{target.ID}
	kept := make([]Comment, 0, len(s.comments)-1)
	for _, c := range s.comments {
		switch {
		case c.ID == target.ID:
		case !target.IsReply && c.IsReply && c.ParentID == target.ID:
			removed = append(removed, c.ID)
		default:
			kept = append(kept, c)
		}
	}
	s.comments = kept
	all := s.commitLocked()
	s.mu.Unlock()

	s.notifyChange(all)
	if s.hooks.OnCommentsRemoved != nil {
		s.hooks.OnCommentsRemoved(removed)
	}
	return true
}

// ClearAll drops every comment and erases the persisted blob.
func (s *AnnotationStore) ClearAll() {
	s.mu.Lock()
	removed := make([]string, len(s.comments))
	for i, c := range s.comments {
		removed[i] = c.ID
	}
	s.comments = nil
	s.version++
	s.writer.Remove()
	s.mu.Unlock()

	s.notifyChange([]Comment{})
	if len(removed) > 0 && s.hooks.OnCommentsRemoved != nil {
		s.hooks.OnCommentsRemoved(removed)
	}
}

// Get returns the comment with id.
func (s *AnnotationStore) Get(id string) (Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.comments[i], true
	}
	return Comment{}, false
}

// All returns every comment in canonical order: each top-level comment
// directly followed by its replies.
func (s *AnnotationStore) All() []Comment {
	return s.filter(func(Comment) bool { return true })
}

// TopLevel returns the comments that are not replies, by timestamp.
func (s *AnnotationStore) TopLevel() []Comment {
	return s.filter(func(c Comment) bool { return !c.IsReply })
}

// Anchored returns the anchored comments in canonical order.
func (s *AnnotationStore) Anchored() []Comment {
	return s.filter(func(c Comment) bool { return c.IsAnchored })
}

// Replies returns the replies of parentID in creation order.
func (s *AnnotationStore) Replies(parentID string) []Comment {
	rs := s.filter(func(c Comment) bool { return c.IsReply && c.ParentID == parentID })
	sortByCreation(rs)
	return rs
}

// Thread returns a comment with its replies. For a reply id the reply is
// returned with no replies.
func (s *AnnotationStore) Thread(id string) (Comment, []Comment, bool) {
	c, ok := s.Get(id)
	if !ok {
		return Comment{}, nil, false
	}
	if c.IsReply {
		return c, []Comment{}, true
	}
	return c, s.Replies(id), true
}

// ForTimestamp returns the comments, replies included, whose timestamp lies
// within tolerance of t. A negative tolerance means the store default.
func (s *AnnotationStore) ForTimestamp(t, tolerance float64) []Comment {
	tol := s.tolerance(tolerance)
	return s.filter(func(c Comment) bool { return within(c.Timestamp, t, tol) })
}

// TopLevelForTimestamp is ForTimestamp without replies.
func (s *AnnotationStore) TopLevelForTimestamp(t, tolerance float64) []Comment {
	tol := s.tolerance(tolerance)
	return s.filter(func(c Comment) bool { return !c.IsReply && within(c.Timestamp, t, tol) })
}

// Stats counts top-level comments and replies and the distinct timestamps
// they sit at.
func (s *AnnotationStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	buckets := make(map[int64]struct{})
	for _, c := range s.comments {
		if c.IsReply {
			st.ReplyCount++
		} else {
			st.TopLevelCount++
		}
		buckets[c.Timestamp] = struct{}{}
	}
	st.TotalInteractions = st.TopLevelCount + st.ReplyCount
	st.DistinctTimestampBuckets = len(buckets)
	return st
}

// Load replaces the collection with the persisted one. Pending writes are
// flushed first. A missing blob loads as empty; a malformed one is logged and
// loads as empty; a read error keeps the current state. If a mutation lands
// while the blob is read, the in-memory state wins. Load does not write.
func (s *AnnotationStore) Load(ctx context.Context) {
	if err := s.writer.Flush(ctx); err != nil {
		s.log.Warn("flush before load", zap.Error(err))
	}

	s.mu.RLock()
	v := s.version
	s.mu.RUnlock()

	data, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Error("load comments", zap.String("key", s.key), zap.Error(err))
		return
	}
	var loaded []Comment
	if found {
		loaded, err = decodeComments(data)
		if err != nil {
			s.log.Warn("malformed comments blob, loading empty", zap.String("key", s.key), zap.Error(err))
			loaded = nil
		}
	}

	s.mu.Lock()
	if s.version != v {
		s.mu.Unlock()
		s.log.Info("load superseded by a concurrent mutation")
		return
	}
	s.comments = loaded
	all := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("comments loaded", zap.Int("count", len(all)))
	s.notifyChange(all)
}

// Flush waits for pending writes and returns the last write error.
func (s *AnnotationStore) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

// commitLocked records a mutation and schedules the snapshot write. It
// returns a copy of the collection for change hooks.
func (s *AnnotationStore) commitLocked() []Comment {
	s.version++
	data, err := encodeBlob(s.comments)
	if err != nil {
		s.log.Error("encode comments", zap.Error(err))
	} else {
		s.writer.Save(data)
	}
	if s.hooks.OnChange == nil {
		return nil
	}
	return s.snapshotLocked()
}

func (s *AnnotationStore) snapshotLocked() []Comment {
	out := make([]Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

func (s *AnnotationStore) notifyChange(all []Comment) {
	if s.hooks.OnChange != nil {
		s.hooks.OnChange(all)
	}
}

func (s *AnnotationStore) filter(keep func(Comment) bool) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Comment, 0)
	for _, c := range s.comments {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *AnnotationStore) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.comments {
		if s.comments[i].ID == id {
			return i
		}
	}
	return -1
}

// rootLocked resolves the top-level comment a reply to id belongs under.
func (s *AnnotationStore) rootLocked(id string) (Comment, bool) {
	i := s.indexLocked(id)
	if i < 0 {
		return Comment{}, false
	}
	c := s.comments[i]
	if !c.IsReply {
		return c, true
	}
	j := s.indexLocked(c.ParentID)
	if j < 0 {
		return Comment{}, false
	}
	return s.comments[j], true
}

func (s *AnnotationStore) tolerance(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return s.opts.Tolerance
	}
	return t
}

func (s *AnnotationStore) cleanText(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > s.opts.MaxTextLength {
		return "", false
	}
	return text, true
}

func authorOrAnonymous(a *Author) Author {
	if a == nil || strings.TrimSpace(a.Name) == "" {
		out := Author{Name: AnonymousName}
		if a != nil {
			out.Avatar = a.Avatar
		}
		return out
	}
	return Author{Name: strings.TrimSpace(a.Name), Avatar: a.Avatar}
}

func anchorColor(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return DefaultAnchorColor
	}
	return c
}

// Package surface is the glue between a review screen and the engine. A
// Session turns UI intents (pause and comment, pin a note, draw, reply,
// jump to a comment) into store mutations at the right timeline position.
// It holds no authoritative state of its own.
package surface

import (
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/example/frame-review/internal/platform/logging"
	"github.com/example/frame-review/services/review/internal/drawing"
	"github.com/example/frame-review/services/review/internal/playback"
	"github.com/example/frame-review/services/review/internal/store"
)

// CurrentWindow is the distance, in seconds, under which a comment counts as
// the one being watched.
const CurrentWindow = 2.0

// Drawings is the part of the drawing store a session uses.
type Drawings interface {
	AddStroke(timestamp float64, path []store.Point, color string) (store.Stroke, bool)
	ForTimestamp(t, tolerance float64) []store.Stroke
}

// Preferences is the part of the preference store a session uses.
type Preferences interface {
	Preferences() store.Preferences
	LastPosition(source string) (float64, bool)
	SavePosition(source string, t float64)
}

// Playback is the part of the bridge a session uses.
type Playback interface {
	playback.Handle
	CapturedTime() (float64, bool)
	State() playback.State
}

type Deps struct {
	Comments    store.CommentStore
	Drawings    Drawings
	Preferences Preferences
	// Source identifies the video for the saved position.
	Source string
	// Author signs comments created through the session. Nil is anonymous.
	Author *store.Author
	Logger *zap.Logger
}

// Composer is the state of the comment input.
type Composer struct {
	Open      bool    `json:"open"`
	Timestamp float64 `json:"timestamp"`
	Anchored  bool    `json:"anchored"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
}

type Session struct {
	deps Deps
	log  *zap.Logger

	mu       sync.Mutex
	player   Playback
	composer Composer
	gesture  drawing.Gesture
	strokeAt float64
}

func NewSession(deps Deps) *Session {
	deps.Logger = logging.OrNop(deps.Logger)
	return &Session{
		deps: deps,
		log:  deps.Logger.With(zap.String("component", "surface"), zap.String("source", deps.Source)),
	}
}

// Callbacks wraps next with the session's own playback reactions: the pause
// position is saved, and once media is ready the last position is restored
// and autoplay applied.
func (s *Session) Callbacks(next playback.Callbacks) playback.Callbacks {
	cb := next
	cb.OnPause = func(t float64) {
		if s.deps.Preferences != nil {
			s.deps.Preferences.SavePosition(s.deps.Source, t)
		}
		if next.OnPause != nil {
			next.OnPause(t)
		}
	}
	cb.OnStateChange = func(from, to playback.State) {
		if to == playback.Ready {
			s.onReady()
		}
		if next.OnStateChange != nil {
			next.OnStateChange(from, to)
		}
	}
	return cb
}

// Attach binds the player the session drives.
func (s *Session) Attach(p Playback) {
	s.mu.Lock()
	s.player = p
	s.mu.Unlock()
}

func (s *Session) playback() Playback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

func (s *Session) onReady() {
	p := s.playback()
	if p == nil || s.deps.Preferences == nil {
		return
	}
	if t, ok := s.deps.Preferences.LastPosition(s.deps.Source); ok {
		s.log.Debug("restoring position", zap.Float64("time", t))
		p.Seek(t)
	}
	if s.deps.Preferences.Preferences().AutoPlay {
		p.Play()
	}
}

// position is the timeline position new annotations attach to: the time
// captured at pause, or the live time when not paused.
func (s *Session) position() float64 {
	p := s.playback()
	if p == nil {
		return 0
	}
	if t, ok := p.CapturedTime(); ok {
		return t
	}
	return p.CurrentTime()
}

// OpenComposer opens the comment input and fixes its timestamp.
func (s *Session) OpenComposer() Composer {
	t := s.position()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composer = Composer{Open: true, Timestamp: t}
	return s.composer
}

// OpenAnchoredComposer opens the input for a comment pinned at (x, y).
func (s *Session) OpenAnchoredComposer(x, y float64) Composer {
	t := s.position()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composer = Composer{Open: true, Timestamp: t, Anchored: true, X: x, Y: y}
	return s.composer
}

// CloseComposer discards the input.
func (s *Session) CloseComposer() {
	s.mu.Lock()
	s.composer = Composer{}
	s.mu.Unlock()
}

func (s *Session) Composer() Composer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composer
}

// SubmitComment adds a comment at the composer's timestamp, opening the
// composer first if needed. The composer closes on success only.
func (s *Session) SubmitComment(text string) (store.Comment, bool) {
	c := s.Composer()
	if !c.Open {
		c = s.OpenComposer()
	}
	return s.submit(c, text, nil)
}

// SubmitAnchored adds the comment of an anchored composer. It declines when
// no anchored composer is open.
func (s *Session) SubmitAnchored(text, color string) (store.Comment, bool) {
	c := s.Composer()
	if !c.Open || !c.Anchored {
		return store.Comment{}, false
	}
	return s.submit(c, text, &store.Anchor{X: c.X, Y: c.Y, Color: color})
}

func (s *Session) submit(c Composer, text string, anchor *store.Anchor) (store.Comment, bool) {
	out, ok := s.deps.Comments.AddComment(text, c.Timestamp, s.deps.Author, anchor)
	if !ok {
		return store.Comment{}, false
	}
	s.mu.Lock()
	if s.composer == c {
		s.composer = Composer{}
	}
	s.mu.Unlock()
	return out, true
}

// Reply answers parentID as the session author.
func (s *Session) Reply(parentID, text string) (store.Comment, bool) {
	return s.deps.Comments.AddReply(parentID, text, s.deps.Author)
}

// SeekTo jumps playback to a comment's timestamp.
func (s *Session) SeekTo(timestamp int64) {
	if p := s.playback(); p != nil {
		p.Seek(float64(timestamp))
	}
}

// IsCurrent reports whether c is within CurrentWindow of the live position.
func (s *Session) IsCurrent(c store.Comment) bool {
	p := s.playback()
	if p == nil {
		return false
	}
	return math.Abs(p.CurrentTime()-float64(c.Timestamp)) < CurrentWindow
}

// CurrentComments returns the top-level comments near the live position.
func (s *Session) CurrentComments() []store.Comment {
	p := s.playback()
	if p == nil {
		return []store.Comment{}
	}
	return s.deps.Comments.TopLevelForTimestamp(p.CurrentTime(), -1)
}

// VisibleStrokes returns the strokes to overlay at the live position.
func (s *Session) VisibleStrokes() []store.Stroke {
	p := s.playback()
	if p == nil || s.deps.Drawings == nil {
		return []store.Stroke{}
	}
	return s.deps.Drawings.ForTimestamp(p.CurrentTime(), -1)
}

// BeginStroke starts drawing on the paused frame. Drawing is only possible
// while paused.
func (s *Session) BeginStroke(pt store.Point) bool {
	p := s.playback()
	if p == nil {
		return false
	}
	t, ok := p.CapturedTime()
	if !ok {
		return false
	}
	s.mu.Lock()
	s.strokeAt = t
	s.mu.Unlock()
	s.gesture.Begin(pt)
	return true
}

func (s *Session) ExtendStroke(pt store.Point) bool {
	return s.gesture.Move(pt)
}

// EndStroke commits the stroke. An empty color uses the preferred one.
func (s *Session) EndStroke(color string) (store.Stroke, bool) {
	path, ok := s.gesture.Release()
	if !ok || s.deps.Drawings == nil {
		return store.Stroke{}, false
	}
	if strings.TrimSpace(color) == "" && s.deps.Preferences != nil {
		color = s.deps.Preferences.Preferences().DefaultDrawingColor
	}
	s.mu.Lock()
	at := s.strokeAt
	s.mu.Unlock()
	return s.deps.Drawings.AddStroke(at, path, color)
}

// Drawing reports whether a stroke is in progress.
func (s *Session) Drawing() bool {
	return s.gesture.Active()
}

func (s *Session) CancelStroke() {
	s.gesture.Cancel()
}

// DraftStroke returns the in-progress stroke for live rendering.
func (s *Session) DraftStroke() drawing.Path {
	return s.gesture.Points()
}

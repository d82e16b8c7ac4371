package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/frame-review/services/review/internal/kv"
	"github.com/example/frame-review/services/review/internal/persist"
)

// Point is a surface-relative coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one committed free-hand path drawn over a paused frame.
type Stroke struct {
	ID        string    `json:"id"`
	Timestamp int64     `json:"timestamp"`
	Path      []Point   `json:"path"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// DrawingHooks are optional stroke notifications, called outside store locks.
type DrawingHooks struct {
	OnChange      func(all []Stroke)
	OnStrokeAdded func(s Stroke)
}

// DrawingStore owns the stroke collection, kept in insertion order.
type DrawingStore struct {
	opts   Options
	key    string
	kv     kv.Store
	writer *persist.Writer
	hooks  DrawingHooks
	log    *zap.Logger

	mu      sync.RWMutex
	strokes []Stroke
	version uint64
}

func NewDrawingStore(store kv.Store, opts Options, hooks DrawingHooks) *DrawingStore {
	opts = opts.withDefaults()
	key := KeysFor(opts.Namespace).Drawings
	log := opts.Logger.With(zap.String("store", "drawings"))
	return &DrawingStore{
		opts:   opts,
		key:    key,
		kv:     store,
		writer: persist.NewWriter(store, key, persist.Options{Timeout: opts.WriteTimeout, Logger: log}),
		hooks:  hooks,
		log:    log,
	}
}

func (s *DrawingStore) Key() string { return s.key }

// AddStroke commits path at floor(timestamp). The path is copied. An empty
// path or invalid timestamp is a no-op; an empty color means DefaultStrokeColor.
func (s *DrawingStore) AddStroke(timestamp float64, path []Point, color string) (Stroke, bool) {
	ts, ok := wholeSeconds(timestamp)
	if !ok || len(path) == 0 {
		return Stroke{}, false
	}
	for _, p := range path {
		if !finite(p.X, p.Y) {
			return Stroke{}, false
		}
	}
	if color = strings.TrimSpace(color); color == "" {
		color = DefaultStrokeColor
	}
	st := Stroke{
		ID:        s.opts.NewID(),
		Timestamp: ts,
		Path:      append([]Point(nil), path...),
		Color:     color,
		CreatedAt: s.opts.Now(),
	}

	s.mu.Lock()
	s.strokes = append(s.strokes, st)
	all := s.commitLocked()
	s.mu.Unlock()

	s.notifyChange(all)
	if s.hooks.OnStrokeAdded != nil {
		s.hooks.OnStrokeAdded(cloneStroke(st))
	}
	return cloneStroke(st), true
}

// RemoveStroke deletes the stroke with id.
func (s *DrawingStore) RemoveStroke(id string) bool {
	s.mu.Lock()
	i := -1
	for j := range s.strokes {
		if s.strokes[j].ID == id {
			i = j
			break
		}
	}
	if id == "" || i < 0 {
		s.mu.Unlock()
		return false
	}
	s.strokes = append(s.strokes[:i:i], s.strokes[i+1:]...)
	all := s.commitLocked()
	s.mu.Unlock()

	s.notifyChange(all)
	return true
}

// ClearAll drops every stroke and erases the persisted blob.
func (s *DrawingStore) ClearAll() {
	s.mu.Lock()
	s.strokes = nil
	s.version++
	s.writer.Remove()
	s.mu.Unlock()

	s.notifyChange([]Stroke{})
}

// All returns every stroke in insertion order.
func (s *DrawingStore) All() []Stroke {
	return s.filter(func(Stroke) bool { return true })
}

// ForTimestamp returns the strokes within tolerance of t. A negative
// tolerance means the store default.
func (s *DrawingStore) ForTimestamp(t, tolerance float64) []Stroke {
	if tolerance < 0 || !finite(tolerance) {
		tolerance = s.opts.Tolerance
	}
	return s.filter(func(st Stroke) bool { return within(st.Timestamp, t, tolerance) })
}

// Load replaces the strokes with the persisted ones. It follows the same
// rules as AnnotationStore.Load.
func (s *DrawingStore) Load(ctx context.Context) {
	if err := s.writer.Flush(ctx); err != nil {
		s.log.Warn("flush before load", zap.Error(err))
	}

	s.mu.RLock()
	v := s.version
	s.mu.RUnlock()

	data, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Error("load drawings", zap.String("key", s.key), zap.Error(err))
		return
	}
	var loaded []Stroke
	if found {
		if loaded, err = decodeStrokes(data); err != nil {
			s.log.Warn("malformed drawings blob, loading empty", zap.String("key", s.key), zap.Error(err))
			loaded = nil
		}
	}

	s.mu.Lock()
	if s.version != v {
		s.mu.Unlock()
		s.log.Info("load superseded by a concurrent mutation")
		return
	}
	s.strokes = loaded
	all := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("drawings loaded", zap.Int("count", len(all)))
	s.notifyChange(all)
}

func (s *DrawingStore) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

func (s *DrawingStore) commitLocked() []Stroke {
	s.version++
	data, err := encodeBlob(s.strokes)
	if err != nil {
		s.log.Error("encode drawings", zap.Error(err))
	} else {
		s.writer.Save(data)
	}
	if s.hooks.OnChange == nil {
		return nil
	}
	return s.snapshotLocked()
}

func (s *DrawingStore) snapshotLocked() []Stroke {
	out := make([]Stroke, len(s.strokes))
	for i, st := range s.strokes {
		out[i] = cloneStroke(st)
	}
	return out
}

func (s *DrawingStore) notifyChange(all []Stroke) {
	if s.hooks.OnChange != nil {
		s.hooks.OnChange(all)
	}
}

func (s *DrawingStore) filter(keep func(Stroke) bool) []Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Stroke, 0)
	for _, st := range s.strokes {
		if keep(st) {
			out = append(out, cloneStroke(st))
		}
	}
	return out
}

// cloneStroke copies the path so callers never share the stored slice.
func cloneStroke(s Stroke) Stroke {
	s.Path = append([]Point(nil), s.Path...)
	return s
}

package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/example/frame-review/services/review/internal/kv"
	"github.com/example/frame-review/services/review/internal/persist"
)

// Preferences are viewer settings.
type Preferences struct {
	DefaultDrawingColor string `json:"defaultDrawingColor"`
	AutoPlay            bool   `json:"autoPlay"`
}

// DefaultPreferences returns the settings used before any are saved.
func DefaultPreferences() Preferences {
	return Preferences{DefaultDrawingColor: DefaultStrokeColor}
}

// Position is the last paused playback position of a video source.
type Position struct {
	Source string  `json:"source"`
	Time   float64 `json:"time"`
}

// PreferenceStore keeps the preferences blob and the last position blob.
type PreferenceStore struct {
	kv     kv.Store
	keys   Keys
	prefsW *persist.Writer
	posW   *persist.Writer
	log    *zap.Logger

	mu       sync.RWMutex
	prefs    Preferences
	position Position
	version  uint64
}

func NewPreferenceStore(store kv.Store, opts Options) *PreferenceStore {
	opts = opts.withDefaults()
	keys := KeysFor(opts.Namespace)
	log := opts.Logger.With(zap.String("store", "preferences"))
	wo := persist.Options{Timeout: opts.WriteTimeout, Logger: log}
	return &PreferenceStore{
		kv:     store,
		keys:   keys,
		prefsW: persist.NewWriter(store, keys.Preferences, wo),
		posW:   persist.NewWriter(store, keys.LastPosition, wo),
		log:    log,
		prefs:  DefaultPreferences(),
	}
}

func (s *PreferenceStore) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// SetPreferences replaces the preferences. An empty drawing color resets it
// to the default.
func (s *PreferenceStore) SetPreferences(p Preferences) Preferences {
	if p.DefaultDrawingColor = strings.TrimSpace(p.DefaultDrawingColor); p.DefaultDrawingColor == "" {
		p.DefaultDrawingColor = DefaultStrokeColor
	}
	data, err := json.Marshal(p)

	s.mu.Lock()
	s.prefs = p
	s.version++
	if err == nil {
		s.prefsW.Save(data)
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("encode preferences", zap.Error(err))
	}
	return p
}

// LastPosition returns the saved position for source. Positions saved for
// another source are not returned.
func (s *PreferenceStore) LastPosition(source string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.position.Source == "" || s.position.Source != source {
		return 0, false
	}
	return s.position.Time, true
}

// SavePosition records t as the last position of source. Invalid times are
// ignored.
func (s *PreferenceStore) SavePosition(source string, t float64) {
	if t < 0 || !finite(t) || source == "" {
		return
	}
	p := Position{Source: source, Time: t}
	data, err := json.Marshal(p)
	if err != nil {
		s.log.Error("encode position", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.position = p
	s.version++
	s.posW.Save(data)
	s.mu.Unlock()
}

// Load reads both blobs. Missing or malformed blobs load as defaults.
func (s *PreferenceStore) Load(ctx context.Context) {
	if err := s.Flush(ctx); err != nil {
		s.log.Warn("flush before load", zap.Error(err))
	}

	s.mu.RLock()
	v := s.version
	s.mu.RUnlock()

	prefs := DefaultPreferences()
	if ok := s.read(ctx, s.keys.Preferences, &prefs); !ok {
		prefs = DefaultPreferences()
	}
	if prefs.DefaultDrawingColor == "" {
		prefs.DefaultDrawingColor = DefaultStrokeColor
	}
	var pos Position
	if ok := s.read(ctx, s.keys.LastPosition, &pos); !ok || pos.Time < 0 || !finite(pos.Time) {
		pos = Position{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != v {
		s.log.Info("load superseded by a concurrent mutation")
		return
	}
	s.prefs = prefs
	s.position = pos
}

// read decodes the blob under key into v. It reports false when the blob is
// missing, unreadable or malformed.
func (s *PreferenceStore) read(ctx context.Context, key string, v any) bool {
	data, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Error("load blob", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("malformed blob, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Flush waits for both writers.
func (s *PreferenceStore) Flush(ctx context.Context) error {
	err := s.prefsW.Flush(ctx)
	if perr := s.posW.Flush(ctx); err == nil {
		err = perr
	}
	return err
}

package store

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/frame-review/internal/platform/logging"
)

const (
	DefaultNamespace     = "frameio"
	DefaultTolerance     = 2.0
	DefaultMaxTextLength = 500
	DefaultStrokeColor   = "#ff0000"
)

// Options configure a store instance. Zero values take defaults.
type Options struct {
	// Namespace derives the persisted keys, so independent instances can
	// share one kv.Store.
	Namespace string
	// Tolerance is the default time window, in seconds, for timestamp queries.
	Tolerance float64
	// MaxTextLength caps comment text, in runes.
	MaxTextLength int
	WriteTimeout  time.Duration
	Logger        *zap.Logger

	// Now and NewID are the clock and id source; tests pin them.
	Now   func() time.Time
	NewID func() string
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Namespace) == "" {
		o.Namespace = DefaultNamespace
	}
	if o.Tolerance < 0 || math.IsNaN(o.Tolerance) {
		o.Tolerance = DefaultTolerance
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxTextLength <= 0 {
		o.MaxTextLength = DefaultMaxTextLength
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = newID
	}
	return o
}

// newID returns a time-ordered UUIDv7, so ids also break ties between
// comments created in the same instant.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Keys are the persisted blob keys of a namespace.
type Keys struct {
	Comments     string
	Drawings     string
	Preferences  string
	LastPosition string
}

// KeysFor derives the blob keys for namespace. The default namespace yields
// "@frameio_comments", "@frameio_drawings" and so on.
func KeysFor(namespace string) Keys {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	p := "@" + ns + "_"
	return Keys{
		Comments:     p + "comments",
		Drawings:     p + "drawings",
		Preferences:  p + "preferences",
		LastPosition: p + "last_video_time",
	}
}

// wholeSeconds converts a playback position to the stored timestamp. It
// rejects negative and non-finite positions.
func wholeSeconds(t float64) (int64, bool) {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return 0, false
	}
	return int64(math.Floor(t)), true
}

// within reports |ts - t| <= tolerance.
func within(ts int64, t, tolerance float64) bool {
	return math.Abs(float64(ts)-t) <= tolerance
}

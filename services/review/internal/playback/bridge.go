package playback

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/example/frame-review/internal/platform/logging"
)

const (
	// SkipSeconds is the jump of SkipForward and SkipBackward.
	SkipSeconds = 10.0
	// DefaultSurfaceWidth is used until the surface reports its width.
	DefaultSurfaceWidth = 400.0
)

// Player is the outbound side of the opaque player.
type Player interface {
	Seek(t float64)
	SetPaused(paused bool)
}

type nopPlayer struct{}

func (nopPlayer) Seek(float64) {}
func (nopPlayer) SetPaused(bool) {}

// Handle is the imperative control surface handed to consumers.
type Handle interface {
	Seek(t float64)
	CurrentTime() float64
	Play()
	Pause()
}

// Callbacks are optional notifications. They run outside the bridge lock
// and may call back into the bridge.
type Callbacks struct {
	OnTimeUpdate          func(t float64)
	OnPlaybackStateChange func(paused bool)
	// OnPause receives the position captured at the moment of pause.
	OnPause       func(t float64)
	OnStateChange func(from, to State)
	OnError       func(reason string)
}

type Options struct {
	// SurfaceWidth is the width of the gesture surface in points; a full
	// width horizontal scrub moves ScrubWindow seconds.
	SurfaceWidth float64
	Logger       *zap.Logger
}

// Snapshot is a consistent view of the bridge for rendering.
type Snapshot struct {
	State       State   `json:"state"`
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	Paused      bool    `json:"paused"`
	Scrubbing   bool    `json:"scrubbing"`
	Preview     float64 `json:"preview"`
	Err         string  `json:"error,omitempty"`
}

// Bridge tracks the player lifecycle and position.
type Bridge struct {
	player Player
	cb     Callbacks
	log    *zap.Logger

	mu       sync.Mutex
	state    State
	current  float64
	duration float64
	captured float64
	errMsg   string
	width    float64
	scrub    scrub
	sliding  bool
}

func NewBridge(player Player, cb Callbacks, opts Options) *Bridge {
	opts.Logger = logging.OrNop(opts.Logger)
	if player == nil {
		player = nopPlayer{}
	}
	if opts.SurfaceWidth <= 0 || !finite(opts.SurfaceWidth) {
		opts.SurfaceWidth = DefaultSurfaceWidth
	}
	return &Bridge{
		player: player,
		cb:     cb,
		log:    opts.Logger.With(zap.String("component", "playback")),
		width:  opts.SurfaceWidth,
	}
}

// Handle returns the imperative control surface of b.
func (b *Bridge) Handle() Handle { return b }

// notice is a deferred callback batch collected under the lock.
type notice []func()

func (n notice) fire() {
	for _, f := range n {
		f()
	}
}

func (b *Bridge) transitionLocked(to State, n *notice) bool {
	from := b.state
	if from == to || !canTransition(from, to) {
		return false
	}
	b.state = to
	b.log.Debug("state change", zap.Stringer("from", from), zap.Stringer("to", to))
	if b.cb.OnStateChange != nil {
		f := b.cb.OnStateChange
		*n = append(*n, func() { f(from, to) })
	}
	return true
}

func (b *Bridge) timeUpdateLocked(t float64, n *notice) {
	if b.cb.OnTimeUpdate != nil {
		f := b.cb.OnTimeUpdate
		*n = append(*n, func() { f(t) })
	}
}

// LoadStart is called when a source is set or loading restarts.
func (b *Bridge) LoadStart() {
	var n notice
	b.mu.Lock()
	b.errMsg = ""
	b.scrub = scrub{}
	b.sliding = false
	b.transitionLocked(Loading, &n)
	b.mu.Unlock()
	n.fire()
}

// Loaded is called once metadata is known.
func (b *Bridge) Loaded(duration float64) {
	var n notice
	b.mu.Lock()
	if st := b.state; st != Loading {
		b.mu.Unlock()
		b.log.Debug("load event outside loading", zap.Stringer("state", st))
		return
	}
	if duration < 0 || !finite(duration) {
		duration = 0
	}
	b.duration = duration
	b.current = b.clampLocked(b.current)
	b.transitionLocked(Ready, &n)
	b.mu.Unlock()
	n.fire()
}

// Progress reports the player position. It is ignored while the user is
// scrubbing or dragging the slider.
func (b *Bridge) Progress(t float64) {
	var n notice
	b.mu.Lock()
	if !b.state.loaded() || b.scrub.active || b.sliding || !finite(t) {
		b.mu.Unlock()
		return
	}
	b.current = b.clampLocked(t)
	b.timeUpdateLocked(b.current, &n)
	b.mu.Unlock()
	n.fire()
}

// Failed moves the bridge to Error.
func (b *Bridge) Failed(reason string) {
	var n notice
	b.mu.Lock()
	if !b.transitionLocked(Error, &n) {
		b.mu.Unlock()
		return
	}
	b.errMsg = reason
	b.scrub = scrub{}
	b.sliding = false
	if b.cb.OnError != nil {
		f := b.cb.OnError
		n = append(n, func() { f(reason) })
	}
	b.mu.Unlock()

	b.log.Warn("playback failed", zap.String("reason", reason))
	n.fire()
}

// Retry restarts loading after an error.
func (b *Bridge) Retry() bool {
	b.mu.Lock()
	isErr := b.state == Error
	b.mu.Unlock()
	if !isErr {
		return false
	}
	b.LoadStart()
	return true
}

// Play resumes playback.
func (b *Bridge) Play() {
	var n notice
	b.mu.Lock()
	ok := b.transitionLocked(Playing, &n)
	if ok && b.cb.OnPlaybackStateChange != nil {
		f := b.cb.OnPlaybackStateChange
		n = append(n, func() { f(false) })
	}
	b.mu.Unlock()
	if ok {
		b.player.SetPaused(false)
	}
	n.fire()
}

// Pause stops playback and captures the exact current position.
func (b *Bridge) Pause() {
	var n notice
	b.mu.Lock()
	ok := b.transitionLocked(Paused, &n)
	if ok {
		t := b.current
		b.captured = t
		if b.cb.OnPlaybackStateChange != nil {
			f := b.cb.OnPlaybackStateChange
			n = append(n, func() { f(true) })
		}
		if b.cb.OnPause != nil {
			f := b.cb.OnPause
			n = append(n, func() { f(t) })
		}
	}
	b.mu.Unlock()
	if ok {
		b.player.SetPaused(true)
	}
	n.fire()
}

// TogglePlayPause pauses a playing video and plays otherwise.
func (b *Bridge) TogglePlayPause() {
	b.mu.Lock()
	playing := b.state == Playing
	b.mu.Unlock()
	if playing {
		b.Pause()
		return
	}
	b.Play()
}

// Seek moves to t, clamped to [0, duration]. While paused the captured
// position follows the seek.
func (b *Bridge) Seek(t float64) {
	b.seek(func(float64) float64 { return t })
}

// SkipForward jumps SkipSeconds ahead.
func (b *Bridge) SkipForward() {
	b.seek(func(cur float64) float64 { return cur + SkipSeconds })
}

// SkipBackward jumps SkipSeconds back.
func (b *Bridge) SkipBackward() {
	b.seek(func(cur float64) float64 { return cur - SkipSeconds })
}

func (b *Bridge) seek(target func(cur float64) float64) {
	var n notice
	b.mu.Lock()
	t, ok := b.seekLocked(target(b.current), &n)
	b.mu.Unlock()
	if ok {
		b.player.Seek(t)
	}
	n.fire()
}

func (b *Bridge) seekLocked(t float64, n *notice) (float64, bool) {
	if !b.state.loaded() || !finite(t) {
		return 0, false
	}
	t = b.clampLocked(t)
	b.current = t
	if b.state == Paused {
		b.captured = t
	}
	b.timeUpdateLocked(t, n)
	return t, true
}

// CurrentTime returns the last known position.
func (b *Bridge) CurrentTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// CapturedTime returns the position captured by the last pause. It reports
// false unless the bridge is paused.
func (b *Bridge) CapturedTime() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Paused {
		return 0, false
	}
	return b.captured, true
}

// State returns the lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetSurfaceWidth updates the gesture surface width after a layout change.
func (b *Bridge) SetSurfaceWidth(w float64) {
	if w <= 0 || !finite(w) {
		return
	}
	b.mu.Lock()
	b.width = w
	b.mu.Unlock()
}

// SlideTo previews a slider position given in percent of the duration. The
// player is not moved until SlideComplete.
func (b *Bridge) SlideTo(percent float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.state.loaded() {
		return b.current
	}
	b.sliding = true
	b.current = b.clampLocked(b.percentLocked(percent))
	return b.current
}

// SlideComplete ends a slider drag and seeks to percent.
func (b *Bridge) SlideComplete(percent float64) {
	var n notice
	b.mu.Lock()
	b.sliding = false
	t, ok := b.seekLocked(b.percentLocked(percent), &n)
	b.mu.Unlock()
	if ok {
		b.player.Seek(t)
	}
	n.fire()
}

func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:       b.state,
		CurrentTime: b.current,
		Duration:    b.duration,
		Paused:      b.state == Paused,
		Scrubbing:   b.scrub.active,
		Preview:     b.scrub.preview,
		Err:         b.errMsg,
	}
}

func (b *Bridge) percentLocked(p float64) float64 {
	if !finite(p) {
		return b.current
	}
	return p / 100 * b.duration
}

func (b *Bridge) clampLocked(t float64) float64 {
	if t < 0 {
		return 0
	}
	if b.duration > 0 && t > b.duration {
		return b.duration
	}
	return t
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

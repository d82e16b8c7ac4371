package playback

import "math"

const (
	// ScrubStartThreshold is the horizontal travel, in points, before a drag
	// becomes a scrub.
	ScrubStartThreshold = 10.0
	// ScrubCommitThreshold is the travel below which releasing a scrub does
	// not seek.
	ScrubCommitThreshold = 20.0
	// ScrubWindow is the number of seconds a full-width drag moves.
	ScrubWindow = 60.0
)

type scrub struct {
	active  bool
	start   float64
	preview float64
}

// ShouldBeginScrub reports whether a drag of (dx, dy) is a horizontal scrub.
func ShouldBeginScrub(dx, dy float64) bool {
	return math.Abs(dx) > math.Abs(dy) && math.Abs(dx) > ScrubStartThreshold
}

// BeginScrub starts a scrub from the current position. Progress events are
// ignored until the scrub ends.
func (b *Bridge) BeginScrub() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.state.loaded() {
		return false
	}
	b.scrub = scrub{active: true, start: b.current, preview: b.current}
	return true
}

// MoveScrub returns the position a release at dx would seek to. The player
// is not moved.
func (b *Bridge) MoveScrub(dx float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.scrub.active {
		return b.current
	}
	b.scrub.preview = b.scrubTargetLocked(dx)
	return b.scrub.preview
}

// EndScrub finishes a scrub. It seeks exactly once when |dx| exceeds
// ScrubCommitThreshold and reports the target.
func (b *Bridge) EndScrub(dx float64) (float64, bool) {
	var n notice
	b.mu.Lock()
	if !b.scrub.active {
		b.mu.Unlock()
		return 0, false
	}
	target := b.scrubTargetLocked(dx)
	b.scrub = scrub{}

	if math.Abs(dx) <= ScrubCommitThreshold || !finite(dx) {
		b.mu.Unlock()
		return 0, false
	}
	t, ok := b.seekLocked(target, &n)
	b.mu.Unlock()
	if ok {
		b.player.Seek(t)
	}
	n.fire()
	return t, ok
}

// CancelScrub abandons a scrub without seeking.
func (b *Bridge) CancelScrub() {
	b.mu.Lock()
	b.scrub = scrub{}
	b.mu.Unlock()
}

func (b *Bridge) scrubTargetLocked(dx float64) float64 {
	if !finite(dx) {
		return b.scrub.start
	}
	return b.clampLocked(b.scrub.start + ScrubWindow*dx/b.width)
}

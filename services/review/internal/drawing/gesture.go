// Package drawing tracks an in-progress free-hand stroke. A Gesture moves
// NotDrawing -> Drawing on Begin and back on Release or Cancel; only a
// released gesture yields a path to commit.
package drawing

import (
	"math"
	"sync"

	"github.com/example/frame-review/services/review/internal/store"
)

// Path is an ordered list of surface points.
type Path []store.Point

// Gesture accumulates points between a press and a release.
type Gesture struct {
	mu     sync.Mutex
	active bool
	points Path
}

// Begin starts a new stroke at p, discarding any unfinished one.
func (g *Gesture) Begin(p store.Point) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = true
	g.points = Path{p}
}

// Move appends p to the active stroke. It reports false when no stroke is
// active or p is not a finite point.
func (g *Gesture) Move(p store.Point) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active || !finite(p) {
		return false
	}
	g.points = append(g.points, p)
	return true
}

// Release ends the stroke and returns its points. It reports false when no
// stroke was active.
func (g *Gesture) Release() (Path, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return nil, false
	}
	out := g.points
	g.active = false
	g.points = nil
	return out, len(out) > 0
}

// Cancel drops the active stroke.
func (g *Gesture) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
	g.points = nil
}

func (g *Gesture) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Points returns a copy of the in-progress points for live rendering.
func (g *Gesture) Points() Path {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append(Path(nil), g.points...)
}

// Interpolate returns path with points inserted so consecutive points are at
// most spacing apart. Segments shorter than half the spacing are kept as is.
func Interpolate(path Path, spacing float64) Path {
	if spacing <= 0 || !finite(store.Point{X: spacing}) {
		spacing = 2
	}
	if len(path) == 0 {
		return Path{}
	}
	out := Path{path[0]}
	for i := 1; i < len(path); i++ {
		prev, cur := path[i-1], path[i]
		d := math.Hypot(cur.X-prev.X, cur.Y-prev.Y)
		if d <= spacing/2 {
			out = append(out, cur)
			continue
		}
		steps := int(math.Ceil(d / spacing))
		for s := 1; s <= steps; s++ {
			r := float64(s) / float64(steps)
			out = append(out, store.Point{
				X: prev.X + (cur.X-prev.X)*r,
				Y: prev.Y + (cur.Y-prev.Y)*r,
			})
		}
	}
	return out
}

// InterpolateStrokes returns copies of strokes with interpolated paths.
func InterpolateStrokes(strokes []store.Stroke, spacing float64) []store.Stroke {
	out := make([]store.Stroke, len(strokes))
	for i, st := range strokes {
		st.Path = Interpolate(st.Path, spacing)
		out[i] = st
	}
	return out
}

func finite(p store.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

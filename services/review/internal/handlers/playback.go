package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/example/frame-review/internal/platform/api"
	"github.com/example/frame-review/internal/platform/httpserver"
	"github.com/example/frame-review/services/review/internal/playback"
)

// Command is an instruction for the on-device player.
type Command struct {
	Kind   string  `json:"kind"` // "seek" or "set_paused"
	Time   float64 `json:"time,omitempty"`
	Paused bool    `json:"paused,omitempty"`
}

// CommandQueue is the playback.Player of the daemon: commands are queued
// until the UI pulls them with the playback state.
type CommandQueue struct {
	mu    sync.Mutex
	queue []Command
}

func (q *CommandQueue) Seek(t float64) {
	q.push(Command{Kind: "seek", Time: t})
}

func (q *CommandQueue) SetPaused(paused bool) {
	q.push(Command{Kind: "set_paused", Paused: paused})
}

func (q *CommandQueue) push(c Command) {
	q.mu.Lock()
	q.queue = append(q.queue, c)
	q.mu.Unlock()
}

// Drain returns and clears the queued commands.
func (q *CommandQueue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queue
	q.queue = nil
	if out == nil {
		out = []Command{}
	}
	return out
}

type playbackResp struct {
	playback.Snapshot
	Commands []Command `json:"commands"`
}

type playbackEventReq struct {
	Type     string  `json:"type"`
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
	Reason   string  `json:"reason"`
}

type playbackControlReq struct {
	Action  string  `json:"action"`
	Time    float64 `json:"time"`
	Percent float64 `json:"percent"`
}

type scrubReq struct {
	Phase string  `json:"phase"`
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
	Width float64 `json:"width"`
}

func writePlayback(w http.ResponseWriter, b *playback.Bridge, q *CommandQueue) {
	api.WriteJSON(w, http.StatusOK, playbackResp{Snapshot: b.Snapshot(), Commands: q.Drain()})
}

// GetPlayback returns the bridge snapshot and hands over queued player
// commands.
func GetPlayback(b *playback.Bridge, q *CommandQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writePlayback(w, b, q)
	}
}

// PlaybackEvent feeds a player event into the bridge.
func PlaybackEvent(b *playback.Bridge, q *CommandQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req playbackEventReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		switch strings.ToLower(strings.TrimSpace(req.Type)) {
		case "load_start":
			b.LoadStart()
		case "loaded":
			b.Loaded(req.Duration)
		case "progress":
			b.Progress(req.Time)
		case "error":
			reason := strings.TrimSpace(req.Reason)
			if reason == "" {
				reason = "playback error"
			}
			b.Failed(reason)
		default:
			api.BadRequest(w, "UNKNOWN_EVENT", "unknown event type", rid, map[string]any{"type": req.Type})
			return
		}
		writePlayback(w, b, q)
	}
}

// PlaybackControl applies a user intent to the bridge.
func PlaybackControl(b *playback.Bridge, q *CommandQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req playbackControlReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		switch strings.ToLower(strings.TrimSpace(req.Action)) {
		case "play":
			b.Play()
		case "pause":
			b.Pause()
		case "toggle":
			b.TogglePlayPause()
		case "seek":
			b.Seek(req.Time)
		case "skip_forward":
			b.SkipForward()
		case "skip_backward":
			b.SkipBackward()
		case "slide":
			b.SlideTo(req.Percent)
		case "slide_complete":
			b.SlideComplete(req.Percent)
		case "retry":
			if !b.Retry() {
				api.WriteError(w, http.StatusConflict, "NOT_FAILED", "retry is only possible after an error", rid, nil)
				return
			}
		default:
			api.BadRequest(w, "UNKNOWN_ACTION", "unknown action", rid, map[string]any{"action": req.Action})
			return
		}
		writePlayback(w, b, q)
	}
}

// Scrub drives a horizontal scrub gesture. A begin phase carrying dx and dy
// is refused unless the drag is horizontal enough.
func Scrub(b *playback.Bridge, q *CommandQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req scrubReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		switch strings.ToLower(strings.TrimSpace(req.Phase)) {
		case "begin":
			if req.Width > 0 {
				b.SetSurfaceWidth(req.Width)
			}
			if (req.DX != 0 || req.DY != 0) && !playback.ShouldBeginScrub(req.DX, req.DY) {
				api.WriteError(w, http.StatusConflict, "NOT_A_SCRUB", "drag is not a horizontal scrub", rid, nil)
				return
			}
			if !b.BeginScrub() {
				api.WriteError(w, http.StatusConflict, "NOT_LOADED", "media is not loaded", rid, nil)
				return
			}
		case "move":
			b.MoveScrub(req.DX)
		case "end":
			b.EndScrub(req.DX)
		case "cancel":
			b.CancelScrub()
		default:
			api.BadRequest(w, "UNKNOWN_PHASE", "unknown scrub phase", rid, map[string]any{"phase": req.Phase})
			return
		}
		writePlayback(w, b, q)
	}
}

// Package playback reconciles an opaque video player with the review
// timeline. The Bridge consumes player events, drives the player through
// the Player interface and exposes the position annotations attach to.
package playback

import "fmt"

// State is the player lifecycle state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Playing
	Paused
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= Error; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("playback: unknown state %q", b)
}

// loaded reports whether the media is usable: duration known and no error.
func (s State) loaded() bool {
	return s == Ready || s == Playing || s == Paused
}

// canTransition lists the edges of the lifecycle.
func canTransition(from, to State) bool {
	switch to {
	case Loading:
		return true
	case Ready:
		return from == Loading
	case Playing:
		return from == Ready || from == Paused
	case Paused:
		return from == Playing
	case Error:
		return from == Loading || from.loaded()
	default:
		return false
	}
}

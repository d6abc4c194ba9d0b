package session

import (
	"errors"
	"fmt"

	"github.com/bft-labs/simreplay/pkg/log"
)

// State is the lifecycle state of a session driver.
type State int

const (
	StateRecording State = iota
	StateFinalized
	StateReplaying
	StateExhausted
	StateAborted
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateRecording:
		return "Recording"
	case StateFinalized:
		return "Finalized"
	case StateReplaying:
		return "Replaying"
	case StateExhausted:
		return "Exhausted"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateExhausted || s == StateAborted
}

var (
	// ErrInvalidTransition is returned when a driver is asked to move to a
	// state its current state cannot reach, e.g. stepping a finalized recorder.
	ErrInvalidTransition = errors.New("session: invalid state transition")

	// ErrAborted wraps the error that ended a session early.
	ErrAborted = errors.New("session: aborted")
)

// machine is the state machine shared by Recorder and Replayer.
type machine struct {
	state    State
	logger   log.Logger
	onChange func(from, to State, reason string)
}

func (m *machine) transitionTo(next State, reason string) error {
	old := m.state

	switch old {
	case StateRecording:
		if next != StateFinalized && next != StateAborted {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old, next)
		}
	case StateReplaying:
		if next != StateExhausted && next != StateAborted {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old, next)
		}
	default:
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, old)
	}

	m.state = next
	if m.onChange != nil {
		m.onChange(old, next, reason)
	}
	m.logger.Info("state transition",
		log.String("from", old.String()),
		log.String("to", next.String()),
		log.String("reason", reason),
	)
	return nil
}

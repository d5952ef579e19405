package cursor

import (
	"errors"
	"time"

	"github.com/vietddude/taskwatcher/internal/core/domain"
)

// State is an alias for domain.SchedulerState for internal use.
type State = domain.SchedulerState

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	domain.StateWaiting: {domain.StateActive, domain.StateFinished},
	domain.StateActive:  {domain.StateFinished},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}

	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to State, reason string) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s State) bool {
	return len(ValidTransitions[s]) == 0
}

// StateAt returns the state implied by the checkpoint's block timestamp.
// A checkpoint exactly at Start is still waiting for the first block of
// the window.
func StateAt(w domain.TimeWindow, checkpointTime uint64) State {
	switch {
	case checkpointTime > w.End:
		return domain.StateFinished
	case checkpointTime > w.Start:
		return domain.StateActive
	default:
		return domain.StateWaiting
	}
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case domain.StateWaiting:
		return "Waiting - campaign window has not started on chain yet"
	case domain.StateActive:
		return "Active - scanning batches inside the campaign window"
	case domain.StateFinished:
		return "Finished - window end reached, nothing left to scan"
	default:
		return "Unknown state"
	}
}

package pipeline

import (
	"fmt"
	"sync/atomic"
)

// State is the run phase of a Pipeline.
type State int32

const (
	StateIdle State = iota
	StateCollecting
	StateDispatching
	StateDraining
	StateReporting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateDispatching:
		return "dispatching"
	case StateDraining:
		return "draining"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// isValidTransition enforces the allowed run phase edges. Collecting may end
// the run directly when setup fails; Done may start another run.
func isValidTransition(from, to State) bool {
	switch from {
	case StateIdle, StateDone:
		return to == StateCollecting
	case StateCollecting:
		return to == StateDispatching || to == StateDone
	case StateDispatching:
		return to == StateDraining
	case StateDraining:
		return to == StateReporting
	case StateReporting:
		return to == StateDone
	default:
		return false
	}
}

type stateMachine struct {
	v atomic.Int32
}

func (m *stateMachine) Load() State { return State(m.v.Load()) }

func (m *stateMachine) transition(to State) error {
	from := m.Load()
	if !isValidTransition(from, to) {
		return fmt.Errorf("invalid pipeline transition %s -> %s", from, to)
	}
	if !m.v.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("concurrent pipeline transition from %s", from)
	}
	return nil
}

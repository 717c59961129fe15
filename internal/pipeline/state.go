package pipeline

import "fmt"

// State is the phase a run is in.
type State string

const (
	StatePending    State = "Pending"
	StateLoaded     State = "Loaded"
	StateDiscovered State = "Discovered"
	StateFiltered   State = "Filtered"
	StateCompiling  State = "Compiling"
	StateFinalizing State = "Finalizing"
	StateDone       State = "Done"
	StateFailed     State = "Failed"
)

// IsTerminal reports whether the run has finished.
func IsTerminal(s State) bool {
	return s == StateDone || s == StateFailed
}

// Transition moves *cur from one state to another.
//
// The caller supplies the expected prior state to make ordering bugs
// observable. *cur is changed if and only if the transition is valid.
func Transition(cur *State, from, to State) error {
	if cur == nil {
		return fmt.Errorf("nil state")
	}
	if *cur != from {
		return fmt.Errorf("invalid transition: expected %s, got %s", from, *cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	*cur = to
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateLoaded || to == StateFailed
	case StateLoaded, StateDiscovered:
		return to == next(from) || to == StateFailed
	case StateFiltered:
		return to == StateDone || to == StateCompiling || to == StateFailed
	case StateCompiling:
		return to == StateFinalizing || to == StateFailed
	case StateFinalizing:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

func next(s State) State {
	switch s {
	case StateLoaded:
		return StateDiscovered
	case StateDiscovered:
		return StateFiltered
	default:
		return ""
	}
}

package pipeline

import "testing"

func TestTransition_ValidPaths(t *testing.T) {
	paths := [][]State{
		{StatePending, StateLoaded, StateDiscovered, StateFiltered, StateDone},
		{StatePending, StateLoaded, StateDiscovered, StateFiltered, StateCompiling, StateFinalizing, StateDone},
		{StatePending, StateLoaded, StateDiscovered, StateFiltered, StateCompiling, StateFinalizing, StateFailed},
		{StatePending, StateLoaded, StateFailed},
		{StatePending, StateLoaded, StateDiscovered, StateFailed},
		{StatePending, StateLoaded, StateDiscovered, StateFiltered, StateCompiling, StateFailed},
	}
	for _, p := range paths {
		s := p[0]
		for i := 1; i < len(p); i++ {
			if err := Transition(&s, p[i-1], p[i]); err != nil {
				t.Fatalf("path %v step %d: %v", p, i, err)
			}
		}
		if !IsTerminal(s) {
			t.Fatalf("path %v ended in non-terminal %s", p, s)
		}
	}
}

func TestTransition_Rejects(t *testing.T) {
	s := StateLoaded
	if err := Transition(&s, StatePending, StateLoaded); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if s != StateLoaded {
		t.Fatalf("state changed on failed transition: %s", s)
	}

	// Skipping the filter is forbidden.
	if err := Transition(&s, StateLoaded, StateCompiling); err == nil {
		t.Fatalf("expected disallowed transition")
	}

	// Terminal states never move.
	for _, term := range []State{StateDone, StateFailed} {
		s = term
		if err := Transition(&s, term, StateLoaded); err == nil {
			t.Fatalf("expected %s to be terminal", term)
		}
	}

	if err := Transition(nil, StatePending, StateLoaded); err == nil {
		t.Fatalf("expected error for nil state")
	}
}

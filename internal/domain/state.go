package domain

import (
	"encoding"
	"fmt"
)

// State is the scheduling stage of a card.
type State int

const (
	New        State = iota // Never studied; no due date yet.
	Learning                // Working through the initial learning steps.
	Review                  // Graduated into the long-term review cycle.
	Relearning              // Lapsed out of Review; relearning before re-graduation.
)

var (
	stateNames  = [...]string{New: "New", Learning: "Learning", Review: "Review", Relearning: "Relearning"}
	stateByName = map[string]State{
		"New":        New,
		"Learning":   Learning,
		"Review":     Review,
		"Relearning": Relearning,
	}
)

var (
	_ fmt.Stringer             = State(0)
	_ encoding.TextMarshaler   = State(0)
	_ encoding.TextUnmarshaler = (*State)(nil)
)

// IsValid reports whether s is a valid state.
func (s State) IsValid() bool {
	return s >= New && s <= Relearning
}

// String returns the name of the state. For invalid values it returns "State(n)".
func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid state: %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, ok := stateByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid state: %q", text)
	}
	*s = v
	return nil
}

package domain

import (
	"encoding"
	"fmt"
)

// Grade is the learner's self-reported recall quality for one review.
type Grade int

const (
	Again Grade = iota // Complete failure to recall.
	Hard               // Recalled with significant difficulty.
	Good               // Recalled with some effort.
	Easy               // Recalled effortlessly.
)

var (
	gradeNames  = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}
	gradeByName = map[string]Grade{
		"Again": Again,
		"Hard":  Hard,
		"Good":  Good,
		"Easy":  Easy,
	}
)

var (
	_ fmt.Stringer             = Grade(0)
	_ encoding.TextMarshaler   = Grade(0)
	_ encoding.TextUnmarshaler = (*Grade)(nil)
)

// IsValid reports whether g is a valid grade (Again through Easy).
func (g Grade) IsValid() bool {
	return g >= Again && g <= Easy
}

// String returns the name of the grade ("Again", "Hard", "Good", "Easy").
// For invalid values it returns "Grade(n)".
func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// MarshalText implements encoding.TextMarshaler.
func (g Grade) MarshalText() ([]byte, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}
	return []byte(gradeNames[g]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Grade) UnmarshalText(text []byte) error {
	v, ok := gradeByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidGrade, text)
	}
	*g = v
	return nil
}

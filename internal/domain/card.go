package domain

import "time"

// Deck groups cards that share an algorithm config.
type Deck struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Card is one flashcard with its content and current scheduling state.
type Card struct {
	ID          string
	DeckID      string
	Front       string
	Back        string
	Context     string
	ContentHash string
	CardState
	// Revision guards concurrent commits: a schedule commit only applies
	// if the revision it was computed from is still current.
	Revision  int64
	SourceID  int64
	CreatedAt time.Time
}

// CardState is the scheduling state the scheduler reads and writes.
// It is a plain value; the scheduler never mutates its input.
type CardState struct {
	State State
	// Step indexes into the learning steps while Learning/Relearning.
	Step int
	// IntervalDays is the current interval. Sub-day precision is only
	// meaningful during Learning; in Review/Relearning it holds whole days.
	IntervalDays float64
	EaseFactor   float64
	// Lapses counts failed reviews over the card's lifetime; never reset.
	Lapses int
	// LapseStreak counts consecutive lapses since the last graduation;
	// reset to zero when the card graduates back to Review.
	LapseStreak    int
	DueAt          *time.Time
	LastReviewedAt *time.Time
}

// DueCard is one entry of the review queue: just enough to present a card.
type DueCard struct {
	CardID string
	DeckID string
	State  State
	DueAt  time.Time
}

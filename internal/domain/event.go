package domain

import "time"

// ReviewEvent is the immutable record of one grading action. Events are
// append-only; they are written once by the schedule commit and only ever
// read afterwards, so historical statistics stay reproducible.
type ReviewEvent struct {
	ID     int64
	CardID string
	DeckID string
	// Nonce is the client-submitted idempotency key. A replayed
	// (CardID, Nonce) pair is rejected instead of double-applied.
	Nonce          string
	Timestamp      time.Time
	Grade          Grade
	IntervalBefore float64
	IntervalAfter  float64
	EaseBefore     float64
	EaseAfter      float64
	// Leech is set when this review pushed the card's consecutive-lapse
	// streak across the configured leech threshold.
	Leech bool
}

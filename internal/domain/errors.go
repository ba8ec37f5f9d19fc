package domain

import "errors"

// Sentinel errors shared across the scheduling core.
// Check with errors.Is: errors.Is(err, domain.ErrNotFound).
var (
	// ErrInvalidGrade marks a grade value outside Again..Easy.
	ErrInvalidGrade = errors.New("invalid grade")

	// ErrCorruptState marks card scheduling state that fails input
	// validation (negative interval or ease factor). The scheduler
	// refuses such input rather than clamping it.
	ErrCorruptState = errors.New("corrupt card state")

	// ErrNotFound marks an unknown card, deck, or source.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a lost commit race: the card changed between
	// read and commit. The caller should re-read and retry at most once.
	ErrConflict = errors.New("commit conflict")

	// ErrDuplicateReview marks a replayed idempotency nonce. The grade
	// was already applied; the caller must not apply it again.
	ErrDuplicateReview = errors.New("duplicate review submission")

	// ErrConfigInvalid marks a resolved algorithm config that fails
	// sanity bounds. Scheduling for that deck is unavailable until the
	// config is corrected.
	ErrConfigInvalid = errors.New("invalid algorithm config")
)

package domain

import "time"

// MinEaseFactor is the hard floor for a card's ease factor.
const MinEaseFactor = 1.3

// AlgorithmConfig is the fully-resolved set of scheduling parameters for
// one deck. It is built once per scheduling call by the settings resolver
// and never mutated mid-calculation.
type AlgorithmConfig struct {
	// LearningSteps are the short intervals applied while a card is in
	// Learning or Relearning, in order.
	LearningSteps []time.Duration `validate:"min=1,dive,gt=0"`

	// GraduatingIntervalDays is the first Review interval after a card
	// graduates with Good.
	GraduatingIntervalDays int `validate:"gte=1"`

	// EasyIntervalDays is the first Review interval after a card
	// graduates with Easy.
	EasyIntervalDays int `validate:"gte=1"`

	StartingEase float64 `validate:"gte=1.3,lte=5"`

	// Ease factor deltas per grade. Good leaves the ease untouched.
	EasyEaseBonus    float64 `validate:"gte=0"`
	HardEasePenalty  float64 `validate:"gte=0"`
	LapseEasePenalty float64 `validate:"gte=0"`

	// HardIntervalFactor replaces the ease factor when a Review card is
	// graded Hard, growing the interval more slowly.
	HardIntervalFactor float64 `validate:"gt=0,lte=3"`

	// EasyIntervalBonus is the extra multiplier applied on top of the
	// ease factor when a Review card is graded Easy.
	EasyIntervalBonus float64 `validate:"gte=1"`

	// IntervalModifier scales every Review interval globally.
	IntervalModifier float64 `validate:"gte=0.5,lte=2"`

	MaxIntervalDays int `validate:"gte=1"`

	// LapseIntervalFraction is the fraction of the pre-lapse interval a
	// card keeps after a failure, with a one-day minimum.
	LapseIntervalFraction float64 `validate:"gt=0,lte=1"`

	// LeechThreshold is the consecutive-lapse count that flags a card as
	// a leech on the commit event.
	LeechThreshold int `validate:"gte=1"`
}

// ConfigOverride holds per-deck overrides for AlgorithmConfig. Nil fields
// inherit the global default; the settings resolver merges field by field.
type ConfigOverride struct {
	LearningSteps          []time.Duration
	GraduatingIntervalDays *int
	EasyIntervalDays       *int
	StartingEase           *float64
	EasyEaseBonus          *float64
	HardEasePenalty        *float64
	LapseEasePenalty       *float64
	HardIntervalFactor     *float64
	EasyIntervalBonus      *float64
	IntervalModifier       *float64
	MaxIntervalDays        *int
	LapseIntervalFraction  *float64
	LeechThreshold         *int
}

// Package settings resolves the effective algorithm config for a deck by
// merging the global defaults with per-deck overrides, field by field.
package settings

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/recall/internal/domain"
)

// Store provides the persisted per-deck overrides.
type Store interface {
	// GetDeckOverride returns the override row for a deck, or nil when the
	// deck has no overrides and inherits the defaults wholesale.
	GetDeckOverride(deckID string) (*domain.ConfigOverride, error)
}

// Default returns the global default algorithm config.
func Default() domain.AlgorithmConfig {
	return domain.AlgorithmConfig{
		LearningSteps:          []time.Duration{time.Minute, 10 * time.Minute},
		GraduatingIntervalDays: 1,
		EasyIntervalDays:       4,
		StartingEase:           2.5,
		EasyEaseBonus:          0.15,
		HardEasePenalty:        0.15,
		LapseEasePenalty:       0.2,
		HardIntervalFactor:     1.2,
		EasyIntervalBonus:      1.3,
		IntervalModifier:       1.0,
		MaxIntervalDays:        36500,
		LapseIntervalFraction:  0.5,
		LeechThreshold:         8,
	}
}

// Resolver merges defaults with deck overrides. Resolution is idempotent
// and side-effect-free; it runs once per scheduling call so config edits
// take effect on the next review.
type Resolver struct {
	store    Store
	defaults domain.AlgorithmConfig
	validate *validator.Validate
}

// NewResolver creates a Resolver over the given store and global defaults.
func NewResolver(store Store, defaults domain.AlgorithmConfig) *Resolver {
	return &Resolver{
		store:    store,
		defaults: defaults,
		validate: validator.New(),
	}
}

// Resolve returns the effective config for a deck. The result is validated
// against sanity bounds; a failing merge surfaces domain.ErrConfigInvalid
// and scheduling for that deck is unavailable until corrected.
func (r *Resolver) Resolve(deckID string) (domain.AlgorithmConfig, error) {
	ov, err := r.store.GetDeckOverride(deckID)
	if err != nil {
		return domain.AlgorithmConfig{}, fmt.Errorf("load overrides for deck %s: %w", deckID, err)
	}

	cfg := Merge(r.defaults, ov)
	if err := r.validate.Struct(cfg); err != nil {
		return domain.AlgorithmConfig{}, fmt.Errorf("%w: deck %s: %v", domain.ErrConfigInvalid, deckID, err)
	}
	return cfg, nil
}

// Merge overlays ov onto base. Nil override fields inherit the base value;
// set fields replace it. The result is a fully-resolved standalone config.
func Merge(base domain.AlgorithmConfig, ov *domain.ConfigOverride) domain.AlgorithmConfig {
	cfg := base
	cfg.LearningSteps = append([]time.Duration(nil), base.LearningSteps...)
	if ov == nil {
		return cfg
	}
	if ov.LearningSteps != nil {
		cfg.LearningSteps = append([]time.Duration(nil), ov.LearningSteps...)
	}
	if ov.GraduatingIntervalDays != nil {
		cfg.GraduatingIntervalDays = *ov.GraduatingIntervalDays
	}
	if ov.EasyIntervalDays != nil {
		cfg.EasyIntervalDays = *ov.EasyIntervalDays
	}
	if ov.StartingEase != nil {
		cfg.StartingEase = *ov.StartingEase
	}
	if ov.EasyEaseBonus != nil {
		cfg.EasyEaseBonus = *ov.EasyEaseBonus
	}
	if ov.HardEasePenalty != nil {
		cfg.HardEasePenalty = *ov.HardEasePenalty
	}
	if ov.LapseEasePenalty != nil {
		cfg.LapseEasePenalty = *ov.LapseEasePenalty
	}
	if ov.HardIntervalFactor != nil {
		cfg.HardIntervalFactor = *ov.HardIntervalFactor
	}
	if ov.EasyIntervalBonus != nil {
		cfg.EasyIntervalBonus = *ov.EasyIntervalBonus
	}
	if ov.IntervalModifier != nil {
		cfg.IntervalModifier = *ov.IntervalModifier
	}
	if ov.MaxIntervalDays != nil {
		cfg.MaxIntervalDays = *ov.MaxIntervalDays
	}
	if ov.LapseIntervalFraction != nil {
		cfg.LapseIntervalFraction = *ov.LapseIntervalFraction
	}
	if ov.LeechThreshold != nil {
		cfg.LeechThreshold = *ov.LeechThreshold
	}
	return cfg
}

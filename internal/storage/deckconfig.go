package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// GetDeckOverride returns the per-deck algorithm overrides, or nil when
// the deck has no override row. Implements settings.Store.
func (db *DB) GetDeckOverride(deckID string) (*domain.ConfigOverride, error) {
	var (
		steps        sql.NullString
		gradDays     sql.NullInt64
		easyDays     sql.NullInt64
		startEase    sql.NullFloat64
		easyBonus    sql.NullFloat64
		hardPenalty  sql.NullFloat64
		lapsePenalty sql.NullFloat64
		hardFactor   sql.NullFloat64
		easyIvlBonus sql.NullFloat64
		modifier     sql.NullFloat64
		maxDays      sql.NullInt64
		fraction     sql.NullFloat64
		leech        sql.NullInt64
	)
	row := db.conn.QueryRow(`
		SELECT learning_steps, graduating_interval_days, easy_interval_days,
			starting_ease, easy_ease_bonus, hard_ease_penalty, lapse_ease_penalty,
			hard_interval_factor, easy_interval_bonus, interval_modifier,
			max_interval_days, lapse_interval_fraction, leech_threshold
		FROM deck_configs WHERE deck_id = ?
	`, deckID)
	err := row.Scan(&steps, &gradDays, &easyDays, &startEase, &easyBonus,
		&hardPenalty, &lapsePenalty, &hardFactor, &easyIvlBonus, &modifier,
		&maxDays, &fraction, &leech)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deck config for %s: %w", deckID, err)
	}

	ov := &domain.ConfigOverride{}
	if steps.Valid {
		parsed, err := ParseSteps(steps.String)
		if err != nil {
			return nil, fmt.Errorf("deck %s learning_steps: %w", deckID, err)
		}
		ov.LearningSteps = parsed
	}
	ov.GraduatingIntervalDays = intPtr(gradDays)
	ov.EasyIntervalDays = intPtr(easyDays)
	ov.StartingEase = floatPtr(startEase)
	ov.EasyEaseBonus = floatPtr(easyBonus)
	ov.HardEasePenalty = floatPtr(hardPenalty)
	ov.LapseEasePenalty = floatPtr(lapsePenalty)
	ov.HardIntervalFactor = floatPtr(hardFactor)
	ov.EasyIntervalBonus = floatPtr(easyIvlBonus)
	ov.IntervalModifier = floatPtr(modifier)
	ov.MaxIntervalDays = intPtr(maxDays)
	ov.LapseIntervalFraction = floatPtr(fraction)
	ov.LeechThreshold = intPtr(leech)
	return ov, nil
}

// SetDeckOverride upserts the per-deck overrides. Nil fields are stored as
// NULL and keep inheriting the global default.
func (db *DB) SetDeckOverride(deckID string, ov *domain.ConfigOverride) error {
	var steps any
	if ov.LearningSteps != nil {
		steps = FormatSteps(ov.LearningSteps)
	}
	err := retryOp(defaultRetryConfig, func() error {
		_, err := db.conn.Exec(`
			INSERT INTO deck_configs (deck_id, learning_steps, graduating_interval_days,
				easy_interval_days, starting_ease, easy_ease_bonus, hard_ease_penalty,
				lapse_ease_penalty, hard_interval_factor, easy_interval_bonus,
				interval_modifier, max_interval_days, lapse_interval_fraction, leech_threshold)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(deck_id) DO UPDATE SET
				learning_steps = excluded.learning_steps,
				graduating_interval_days = excluded.graduating_interval_days,
				easy_interval_days = excluded.easy_interval_days,
				starting_ease = excluded.starting_ease,
				easy_ease_bonus = excluded.easy_ease_bonus,
				hard_ease_penalty = excluded.hard_ease_penalty,
				lapse_ease_penalty = excluded.lapse_ease_penalty,
				hard_interval_factor = excluded.hard_interval_factor,
				easy_interval_bonus = excluded.easy_interval_bonus,
				interval_modifier = excluded.interval_modifier,
				max_interval_days = excluded.max_interval_days,
				lapse_interval_fraction = excluded.lapse_interval_fraction,
				leech_threshold = excluded.leech_threshold
		`,
			deckID, steps, ptrVal(ov.GraduatingIntervalDays), ptrVal(ov.EasyIntervalDays),
			ptrVal(ov.StartingEase), ptrVal(ov.EasyEaseBonus), ptrVal(ov.HardEasePenalty),
			ptrVal(ov.LapseEasePenalty), ptrVal(ov.HardIntervalFactor), ptrVal(ov.EasyIntervalBonus),
			ptrVal(ov.IntervalModifier), ptrVal(ov.MaxIntervalDays), ptrVal(ov.LapseIntervalFraction),
			ptrVal(ov.LeechThreshold),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set deck config for %s: %w", deckID, err)
	}
	return nil
}

// ParseSteps parses a comma-separated duration list like "1m,10m".
func ParseSteps(s string) ([]time.Duration, error) {
	parts := strings.Split(s, ",")
	steps := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid learning step %q: %w", p, err)
		}
		steps = append(steps, d)
	}
	return steps, nil
}

// FormatSteps renders a duration list back into the stored "1m,10m" form.
func FormatSteps(steps []time.Duration) string {
	parts := make([]string, len(steps))
	for i, d := range steps {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func ptrVal[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Package scheduler implements the SM-2-style spaced-repetition state
// machine. Schedule is a pure function: it never touches storage, and the
// caller is responsible for persisting both outputs atomically.
package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// Schedule computes the next scheduling state of a card after one grading
// action, together with the review event to append to the log.
//
// The input state is not mutated. Corrupt input (negative interval or ease
// factor, unknown state) and invalid grades are rejected; the scheduler
// only clamps values it computes itself.
func Schedule(st domain.CardState, grade domain.Grade, cfg domain.AlgorithmConfig, now time.Time) (domain.CardState, domain.ReviewEvent, error) {
	if !grade.IsValid() {
		return domain.CardState{}, domain.ReviewEvent{}, fmt.Errorf("%w: %d", domain.ErrInvalidGrade, int(grade))
	}
	if st.IntervalDays < 0 {
		return domain.CardState{}, domain.ReviewEvent{}, fmt.Errorf("%w: negative interval %.3f", domain.ErrCorruptState, st.IntervalDays)
	}
	if st.EaseFactor < 0 {
		return domain.CardState{}, domain.ReviewEvent{}, fmt.Errorf("%w: negative ease factor %.3f", domain.ErrCorruptState, st.EaseFactor)
	}

	next := st
	ev := domain.ReviewEvent{
		Timestamp:      now,
		Grade:          grade,
		IntervalBefore: st.IntervalDays,
		EaseBefore:     st.EaseFactor,
	}

	switch st.State {
	case domain.New:
		scheduleNew(&next, grade, cfg, now)
	case domain.Learning:
		scheduleLearning(&next, grade, cfg, now)
	case domain.Review:
		scheduleReview(&next, &ev, grade, cfg, now)
	case domain.Relearning:
		scheduleRelearning(&next, &ev, grade, cfg, now)
	default:
		return domain.CardState{}, domain.ReviewEvent{}, fmt.Errorf("%w: unknown state %d", domain.ErrCorruptState, int(st.State))
	}

	reviewed := now
	next.LastReviewedAt = &reviewed
	ev.IntervalAfter = next.IntervalDays
	ev.EaseAfter = next.EaseFactor
	return next, ev, nil
}

// Replay rebuilds a card's scheduling state by replaying its review log in
// order from the initial New state. The persisted state of a healthy card
// equals the replay of its full log.
func Replay(events []domain.ReviewEvent, cfg domain.AlgorithmConfig) (domain.CardState, error) {
	var st domain.CardState
	for _, ev := range events {
		next, _, err := Schedule(st, ev.Grade, cfg, ev.Timestamp)
		if err != nil {
			return domain.CardState{}, fmt.Errorf("replay event %d: %w", ev.ID, err)
		}
		st = next
	}
	return st, nil
}

func scheduleNew(next *domain.CardState, grade domain.Grade, cfg domain.AlgorithmConfig, now time.Time) {
	next.EaseFactor = cfg.StartingEase

	switch grade {
	case domain.Again, domain.Hard:
		next.State = domain.Learning
		enterStep(next, 0, cfg, now)
	case domain.Good:
		if len(cfg.LearningSteps) > 1 {
			next.State = domain.Learning
			enterStep(next, 1, cfg, now)
		} else {
			graduate(next, cfg.GraduatingIntervalDays, cfg, now)
		}
	case domain.Easy:
		graduate(next, cfg.EasyIntervalDays, cfg, now)
		next.EaseFactor = cfg.StartingEase + cfg.EasyEaseBonus
	}
}

func scheduleLearning(next *domain.CardState, grade domain.Grade, cfg domain.AlgorithmConfig, now time.Time) {
	switch grade {
	case domain.Again:
		enterStep(next, 0, cfg, now)
	case domain.Hard:
		enterStep(next, next.Step, cfg, now)
	case domain.Good:
		if next.Step+1 >= len(cfg.LearningSteps) {
			graduate(next, cfg.GraduatingIntervalDays, cfg, now)
		} else {
			enterStep(next, next.Step+1, cfg, now)
		}
	case domain.Easy:
		graduate(next, cfg.EasyIntervalDays, cfg, now)
	}
}

func scheduleReview(next *domain.CardState, ev *domain.ReviewEvent, grade domain.Grade, cfg domain.AlgorithmConfig, now time.Time) {
	if grade == domain.Again {
		lapse(next, ev, cfg, now)
		return
	}

	// A successful review breaks the consecutive-lapse streak.
	next.LapseStreak = 0

	prev := next.IntervalDays
	var days int
	switch grade {
	case domain.Hard:
		next.EaseFactor = clampEase(next.EaseFactor - cfg.HardEasePenalty)
		days = reviewDays(prev, cfg.HardIntervalFactor, 1, cfg)
	case domain.Good:
		days = reviewDays(prev, next.EaseFactor, int(prev)+1, cfg)
	case domain.Easy:
		days = reviewDays(prev, next.EaseFactor*cfg.EasyIntervalBonus, int(prev)+1, cfg)
		next.EaseFactor += cfg.EasyEaseBonus
	}

	next.Step = 0
	next.IntervalDays = float64(days)
	due := now.Add(time.Duration(days) * 24 * time.Hour)
	next.DueAt = &due
}

func scheduleRelearning(next *domain.CardState, ev *domain.ReviewEvent, grade domain.Grade, cfg domain.AlgorithmConfig, now time.Time) {
	// The interval field holds the relearn target in whole days; the
	// learning steps only drive the short-fuse due dates until the card
	// graduates back to Review at that target.
	switch grade {
	case domain.Again:
		next.Lapses++
		next.LapseStreak++
		ev.Leech = next.LapseStreak >= cfg.LeechThreshold
		next.Step = 0
		due := now.Add(stepAt(cfg, 0))
		next.DueAt = &due
	case domain.Hard:
		due := now.Add(stepAt(cfg, next.Step))
		next.DueAt = &due
	case domain.Good:
		if next.Step+1 >= len(cfg.LearningSteps) {
			regraduate(next, cfg, now)
		} else {
			next.Step++
			due := now.Add(stepAt(cfg, next.Step))
			next.DueAt = &due
		}
	case domain.Easy:
		regraduate(next, cfg, now)
	}
}

// lapse handles Again on a Review card: transition to Relearning, shrink
// the interval to the configured fraction with a one-day minimum, and
// apply the lapse ease penalty.
func lapse(next *domain.CardState, ev *domain.ReviewEvent, cfg domain.AlgorithmConfig, now time.Time) {
	next.Lapses++
	next.LapseStreak++
	ev.Leech = next.LapseStreak >= cfg.LeechThreshold

	next.EaseFactor = clampEase(next.EaseFactor - cfg.LapseEasePenalty)

	target := math.Ceil(next.IntervalDays * cfg.LapseIntervalFraction)
	if target < 1 {
		target = 1
	}
	next.State = domain.Relearning
	next.Step = 0
	next.IntervalDays = target
	due := now.Add(stepAt(cfg, 0))
	next.DueAt = &due
}

// enterStep moves a Learning card onto the given learning step. The step
// duration becomes the card's interval, kept with sub-day precision.
func enterStep(next *domain.CardState, step int, cfg domain.AlgorithmConfig, now time.Time) {
	if step >= len(cfg.LearningSteps) {
		step = len(cfg.LearningSteps) - 1
	}
	d := stepAt(cfg, step)
	next.Step = step
	next.IntervalDays = d.Hours() / 24
	due := now.Add(d)
	next.DueAt = &due
}

// graduate moves a card from New/Learning into Review at the given
// whole-day interval.
func graduate(next *domain.CardState, days int, cfg domain.AlgorithmConfig, now time.Time) {
	if days > cfg.MaxIntervalDays {
		days = cfg.MaxIntervalDays
	}
	next.State = domain.Review
	next.Step = 0
	next.LapseStreak = 0
	next.IntervalDays = float64(days)
	due := now.Add(time.Duration(days) * 24 * time.Hour)
	next.DueAt = &due
}

// regraduate moves a Relearning card back into Review at the post-lapse
// interval it has been carrying since the lapse.
func regraduate(next *domain.CardState, cfg domain.AlgorithmConfig, now time.Time) {
	days := int(math.Ceil(next.IntervalDays))
	if days < 1 {
		days = 1
	}
	graduate(next, days, cfg, now)
}

// reviewDays computes a Review interval: previous interval times the given
// factor times the global modifier, rounded up to whole days, floored at
// minDays and capped at the configured maximum.
func reviewDays(prev, factor float64, minDays int, cfg domain.AlgorithmConfig) int {
	days := int(math.Ceil(prev * factor * cfg.IntervalModifier))
	if days < minDays {
		days = minDays
	}
	if days > cfg.MaxIntervalDays {
		days = cfg.MaxIntervalDays
	}
	return days
}

func clampEase(ease float64) float64 {
	if ease < domain.MinEaseFactor {
		return domain.MinEaseFactor
	}
	return ease
}

func stepAt(cfg domain.AlgorithmConfig, i int) time.Duration {
	if len(cfg.LearningSteps) == 0 {
		return time.Minute
	}
	if i >= len(cfg.LearningSteps) {
		i = len(cfg.LearningSteps) - 1
	}
	if i < 0 {
		i = 0
	}
	return cfg.LearningSteps[i]
}

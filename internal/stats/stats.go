// Package stats derives heatmaps and retention metrics from the review
// log. Every figure is recomputed from the log plus current card state on
// each call; no running counters are persisted, so the numbers can never
// drift from the events that produced them.
package stats

import (
	"fmt"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// Store is the read-only slice of persistence the aggregator uses.
type Store interface {
	ListEventsBetween(deckID string, from, to time.Time) ([]domain.ReviewEvent, error)
	CountCards(deckID string) (int, error)
	AverageEase(deckID string) (float64, error)
	CountDueBefore(deckID string, cutoff time.Time) (int, error)
}

// DeckStats summarizes one deck (or the whole collection for an empty
// deck ID).
type DeckStats struct {
	// RetentionRate is the fraction of reviews in the last 30 days graded
	// anything other than Again. Zero when there were no reviews.
	RetentionRate float64 `json:"retention_rate"`
	AverageEase   float64 `json:"average_ease"`
	DueToday      int     `json:"due_today"`
	TotalCards    int     `json:"total_cards"`
	LapsesLast30d int     `json:"lapses_last_30d"`
}

// StudyStats summarizes the learner's recent activity.
type StudyStats struct {
	StreakDays      int `json:"streak_days"`
	ReviewsToday    int `json:"reviews_today"`
	ReviewsThisWeek int `json:"reviews_this_week"`
}

// Aggregator computes statistics in the learner's time zone. It only
// reads; it is safe to run concurrently with schedule commits.
type Aggregator struct {
	store Store
	loc   *time.Location
}

// NewAggregator creates an Aggregator. A nil location defaults to UTC.
func NewAggregator(store Store, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{store: store, loc: loc}
}

// Location returns the learner's time zone. Date-only range boundaries
// must be interpreted in this zone to line up with the heatmap buckets.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Heatmap returns the calendar-day review counts in [from, to), keyed by
// "2006-01-02" dates in the learner's time zone. Days without reviews are
// absent from the map.
func (a *Aggregator) Heatmap(deckID string, from, to time.Time) (map[string]int, error) {
	events, err := a.store.ListEventsBetween(deckID, from, to)
	if err != nil {
		return nil, fmt.Errorf("heatmap events: %w", err)
	}
	buckets := make(map[string]int)
	for _, ev := range events {
		buckets[ev.Timestamp.In(a.loc).Format(time.DateOnly)]++
	}
	return buckets, nil
}

// DeckStats computes the reporting figures for one deck.
func (a *Aggregator) DeckStats(deckID string, now time.Time) (DeckStats, error) {
	var out DeckStats

	total, err := a.store.CountCards(deckID)
	if err != nil {
		return out, fmt.Errorf("deck stats: %w", err)
	}
	out.TotalCards = total

	avg, err := a.store.AverageEase(deckID)
	if err != nil {
		return out, fmt.Errorf("deck stats: %w", err)
	}
	out.AverageEase = avg

	// "Due today" counts everything due up to the end of the local day,
	// matching what a session started now could possibly reach.
	endOfDay := a.dayStart(now).AddDate(0, 0, 1)
	due, err := a.store.CountDueBefore(deckID, endOfDay)
	if err != nil {
		return out, fmt.Errorf("deck stats: %w", err)
	}
	out.DueToday = due

	events, err := a.store.ListEventsBetween(deckID, now.AddDate(0, 0, -30), now)
	if err != nil {
		return out, fmt.Errorf("deck stats: %w", err)
	}
	var recalled int
	for _, ev := range events {
		if ev.Grade == domain.Again {
			out.LapsesLast30d++
		} else {
			recalled++
		}
	}
	if len(events) > 0 {
		out.RetentionRate = float64(recalled) / float64(len(events))
	}
	return out, nil
}

// StudyStats computes the learner-wide activity summary. The streak walks
// backward day by day from today in the learner's time zone and stops at
// the first day with zero reviews; an empty today does not break a streak
// that is still alive from yesterday.
func (a *Aggregator) StudyStats(now time.Time) (StudyStats, error) {
	var out StudyStats

	// A year of history bounds the streak walk.
	from := now.AddDate(-1, 0, 0)
	events, err := a.store.ListEventsBetween("", from, now.Add(time.Second))
	if err != nil {
		return out, fmt.Errorf("study stats: %w", err)
	}

	perDay := make(map[string]int)
	for _, ev := range events {
		perDay[ev.Timestamp.In(a.loc).Format(time.DateOnly)]++
	}

	today := a.dayStart(now)
	out.ReviewsToday = perDay[today.Format(time.DateOnly)]

	weekStart := a.weekStart(now)
	for _, ev := range events {
		if !ev.Timestamp.In(a.loc).Before(weekStart) {
			out.ReviewsThisWeek++
		}
	}

	day := today
	if perDay[day.Format(time.DateOnly)] == 0 {
		day = day.AddDate(0, 0, -1)
	}
	for perDay[day.Format(time.DateOnly)] > 0 {
		out.StreakDays++
		day = day.AddDate(0, 0, -1)
	}
	return out, nil
}

// dayStart returns midnight of now's calendar day in the learner's zone.
func (a *Aggregator) dayStart(now time.Time) time.Time {
	local := now.In(a.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)
}

// weekStart returns midnight of the most recent Monday.
func (a *Aggregator) weekStart(now time.Time) time.Time {
	day := a.dayStart(now)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

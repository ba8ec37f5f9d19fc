package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// ListDueCards returns cards in the given states whose due date has passed,
// most overdue first. An empty deckID spans all decks. The queue selector
// calls this on every resumption, so the result always reflects the latest
// committed state.
func (db *DB) ListDueCards(deckID string, now time.Time, states []domain.State, limit int) ([]domain.DueCard, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(states))
	args := make([]any, 0, len(states)+3)
	for i, s := range states {
		placeholders[i] = "?"
		args = append(args, int(s))
	}

	query := `SELECT id, deck_id, state, due_at FROM cards
		WHERE state IN (` + strings.Join(placeholders, ", ") + `) AND due_at <= ?`
	args = append(args, now)
	if deckID != "" {
		query += ` AND deck_id = ?`
		args = append(args, deckID)
	}
	query += ` ORDER BY due_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list due cards: %w", err)
	}
	defer rows.Close()

	var due []domain.DueCard
	for rows.Next() {
		var (
			d     domain.DueCard
			state int
		)
		if err := rows.Scan(&d.CardID, &d.DeckID, &state, &d.DueAt); err != nil {
			return nil, fmt.Errorf("failed to scan due card row: %w", err)
		}
		d.State = domain.State(state)
		due = append(due, d)
	}
	return due, rows.Err()
}

// NextNewCard returns the oldest never-studied card, or nil when the deck
// has no new cards left.
func (db *DB) NextNewCard(deckID string) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE state = ?`
	args := []any{int(domain.New)}
	if deckID != "" {
		query += ` AND deck_id = ?`
		args = append(args, deckID)
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT 1`

	row := db.conn.QueryRow(query, args...)
	c, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get next new card: %w", err)
	}
	return c, nil
}

// ListEventsBetween returns review events in [from, to), oldest first.
// An empty deckID spans all decks.
func (db *DB) ListEventsBetween(deckID string, from, to time.Time) ([]domain.ReviewEvent, error) {
	query := `SELECT id, card_id, deck_id, nonce, reviewed_at, grade,
		interval_before, interval_after, ease_before, ease_after, leech
		FROM review_events WHERE reviewed_at >= ? AND reviewed_at < ?`
	args := []any{from, to}
	if deckID != "" {
		query += ` AND deck_id = ?`
		args = append(args, deckID)
	}
	query += ` ORDER BY reviewed_at ASC, id ASC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list review events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEventsForCard returns a card's full review log, oldest first.
func (db *DB) ListEventsForCard(cardID string) ([]domain.ReviewEvent, error) {
	rows, err := db.conn.Query(`
		SELECT id, card_id, deck_id, nonce, reviewed_at, grade,
			interval_before, interval_after, ease_before, ease_after, leech
		FROM review_events WHERE card_id = ? ORDER BY id ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for card %s: %w", cardID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.ReviewEvent, error) {
	var events []domain.ReviewEvent
	for rows.Next() {
		var (
			ev    domain.ReviewEvent
			grade int
			leech int
		)
		if err := rows.Scan(
			&ev.ID, &ev.CardID, &ev.DeckID, &ev.Nonce, &ev.Timestamp, &grade,
			&ev.IntervalBefore, &ev.IntervalAfter, &ev.EaseBefore, &ev.EaseAfter, &leech,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review event row: %w", err)
		}
		ev.Grade = domain.Grade(grade)
		ev.Leech = leech != 0
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountCards returns the number of cards in a deck (all decks when empty).
func (db *DB) CountCards(deckID string) (int, error) {
	query := `SELECT COUNT(*) FROM cards`
	var args []any
	if deckID != "" {
		query += ` WHERE deck_id = ?`
		args = append(args, deckID)
	}
	var n int
	if err := db.conn.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}

// AverageEase returns the mean ease factor over cards that have left New,
// or zero when no card has been studied yet.
func (db *DB) AverageEase(deckID string) (float64, error) {
	query := `SELECT COALESCE(AVG(ease_factor), 0) FROM cards WHERE state != ?`
	args := []any{int(domain.New)}
	if deckID != "" {
		query += ` AND deck_id = ?`
		args = append(args, deckID)
	}
	var avg float64
	if err := db.conn.QueryRow(query, args...).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to average ease: %w", err)
	}
	return avg, nil
}

// CountDueBefore returns how many studied cards are due at or before cutoff.
func (db *DB) CountDueBefore(deckID string, cutoff time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM cards WHERE state != ? AND due_at <= ?`
	args := []any{int(domain.New), cutoff}
	if deckID != "" {
		query += ` AND deck_id = ?`
		args = append(args, deckID)
	}
	var n int
	if err := db.conn.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return n, nil
}

// Package storage persists decks, cards, the review-event log, per-deck
// config overrides, and card sources in a single SQLite database.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/recall/internal/domain"
)

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateDeck inserts a new deck and returns it.
func (db *DB) CreateDeck(name string) (*domain.Deck, error) {
	deck := &domain.Deck{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	err := retryOp(defaultRetryConfig, func() error {
		_, err := db.conn.Exec(`
			INSERT INTO decks (id, name, created_at) VALUES (?, ?, ?)
		`, deck.ID, deck.Name, deck.CreatedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create deck %s: %w", name, err)
	}
	return deck, nil
}

// GetDeck retrieves a deck by ID.
func (db *DB) GetDeck(id string) (*domain.Deck, error) {
	var d domain.Deck
	row := db.conn.QueryRow(`SELECT id, name, created_at FROM decks WHERE id = ?`, id)
	if err := row.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get deck %s: %w", id, err)
	}
	return &d, nil
}

// GetDeckByName retrieves a deck by its unique name, or nil if absent.
func (db *DB) GetDeckByName(name string) (*domain.Deck, error) {
	var d domain.Deck
	row := db.conn.QueryRow(`SELECT id, name, created_at FROM decks WHERE name = ?`, name)
	if err := row.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deck by name %s: %w", name, err)
	}
	return &d, nil
}

// ListDecks returns all decks ordered by name.
func (db *DB) ListDecks() ([]domain.Deck, error) {
	rows, err := db.conn.Query(`SELECT id, name, created_at FROM decks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

const cardColumns = `id, deck_id, front, back, context, content_hash,
	state, step, interval_days, ease_factor, lapses, lapse_streak,
	due_at, last_reviewed_at, revision, source_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var (
		c            domain.Card
		state        int
		dueAt        sql.NullTime
		lastReviewed sql.NullTime
		sourceID     sql.NullInt64
	)
	err := row.Scan(
		&c.ID, &c.DeckID, &c.Front, &c.Back, &c.Context, &c.ContentHash,
		&state, &c.Step, &c.IntervalDays, &c.EaseFactor, &c.Lapses, &c.LapseStreak,
		&dueAt, &lastReviewed, &c.Revision, &sourceID, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.State = domain.State(state)
	if dueAt.Valid {
		t := dueAt.Time
		c.DueAt = &t
	}
	if lastReviewed.Valid {
		t := lastReviewed.Time
		c.LastReviewedAt = &t
	}
	if sourceID.Valid {
		c.SourceID = sourceID.Int64
	}
	return &c, nil
}

// InsertCard inserts a new card in the New state. A missing ID is assigned.
func (db *DB) InsertCard(c *domain.Card) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	var sourceID any
	if c.SourceID != 0 {
		sourceID = c.SourceID
	}
	err := retryOp(defaultRetryConfig, func() error {
		_, err := db.conn.Exec(`
			INSERT INTO cards (id, deck_id, front, back, context, content_hash,
				state, step, interval_days, ease_factor, lapses, lapse_streak,
				due_at, last_reviewed_at, revision, source_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, 0, ?, ?)
		`,
			c.ID, c.DeckID, c.Front, c.Back, c.Context, c.ContentHash,
			int(domain.New), 0, 0.0, 0.0, 0, 0,
			sourceID, c.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
	}
	return nil
}

// GetCard retrieves a card with its current scheduling state.
func (db *DB) GetCard(id string) (*domain.Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return c, nil
}

// FindCardByHash retrieves a card by its deck and content hash, or nil if
// no such card exists.
func (db *DB) FindCardByHash(deckID, hash string) (*domain.Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE deck_id = ? AND content_hash = ?`, deckID, hash)
	c, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return c, nil
}

// ListCardsBySource returns all cards imported from the given source.
func (db *DB) ListCardsBySource(sourceID int64) ([]domain.Card, error) {
	rows, err := db.conn.Query(`SELECT `+cardColumns+` FROM cards WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards for source %d: %w", sourceID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

// DeleteCardIfUnreviewed removes a card only when its review log is empty.
// Reviewed cards are kept even when their source drops them, because
// deleting them would orphan log events and corrupt historical statistics.
func (db *DB) DeleteCardIfUnreviewed(id string) (bool, error) {
	var deleted bool
	err := retryOp(defaultRetryConfig, func() error {
		res, err := db.conn.Exec(`
			DELETE FROM cards
			WHERE id = ?
			  AND NOT EXISTS (SELECT 1 FROM review_events WHERE card_id = cards.id)
		`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return deleted, nil
}

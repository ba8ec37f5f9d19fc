package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// Source is a card origin for one deck: a local directory or a git URL.
type Source struct {
	ID          int64
	DeckID      string
	Path        string
	Type        string
	LastScanned sql.NullTime
}

// InsertSource registers a new card source for a deck and returns its ID.
func (db *DB) InsertSource(deckID, path, sourceType string) (int64, error) {
	var id int64
	err := retryOp(defaultRetryConfig, func() error {
		res, err := db.conn.Exec(`
			INSERT INTO sources (deck_id, path, type) VALUES (?, ?, ?)
		`, deckID, path, sourceType)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	return id, nil
}

// GetAllSources returns every registered source.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`SELECT id, deck_id, path, type, last_scanned FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.DeckID, &s.Path, &s.Type, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source registration. Cards imported from it stay.
func (db *DB) DeleteSource(id int64) error {
	err := retryOp(defaultRetryConfig, func() error {
		res, err := db.conn.Exec(`DELETE FROM sources WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}

// UpdateSourceLastScanned records a completed reconciliation pass.
func (db *DB) UpdateSourceLastScanned(id int64) error {
	err := retryOp(defaultRetryConfig, func() error {
		_, err := db.conn.Exec(`UPDATE sources SET last_scanned = ? WHERE id = ?`, time.Now().UTC(), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source %d: %w", id, err)
	}
	return nil
}

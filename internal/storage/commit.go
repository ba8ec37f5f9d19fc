package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// CommitSchedule atomically applies a scheduler result: the review event is
// appended to the log and the card row is updated in one transaction, so a
// crash never leaves due date and history inconsistent.
//
// Two failure modes are distinguished for the caller:
//   - domain.ErrDuplicateReview: the (card, nonce) pair was already
//     committed. The grade must not be applied again.
//   - domain.ErrConflict: the card's revision moved since expectedRevision
//     was read. The caller should re-read and retry at most once.
func (db *DB) CommitSchedule(cardID string, expectedRevision int64, st domain.CardState, ev domain.ReviewEvent) error {
	return retryOp(defaultRetryConfig, func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin commit for card %s: %w", cardID, err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO review_events (card_id, deck_id, nonce, reviewed_at, grade,
				interval_before, interval_after, ease_before, ease_after, leech)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			ev.CardID, ev.DeckID, ev.Nonce, ev.Timestamp, int(ev.Grade),
			ev.IntervalBefore, ev.IntervalAfter, ev.EaseBefore, ev.EaseAfter,
			boolToInt(ev.Leech),
		)
		if err != nil {
			if isNonceConflict(err) {
				return fmt.Errorf("card %s nonce %s: %w", cardID, ev.Nonce, domain.ErrDuplicateReview)
			}
			return fmt.Errorf("failed to append review event for card %s: %w", cardID, err)
		}

		res, err := tx.Exec(`
			UPDATE cards
			SET state = ?, step = ?, interval_days = ?, ease_factor = ?,
			    lapses = ?, lapse_streak = ?, due_at = ?, last_reviewed_at = ?,
			    revision = revision + 1
			WHERE id = ? AND revision = ?
		`,
			int(st.State), st.Step, st.IntervalDays, st.EaseFactor,
			st.Lapses, st.LapseStreak, nullableTime(st.DueAt), nullableTime(st.LastReviewedAt),
			cardID, expectedRevision,
		)
		if err != nil {
			return fmt.Errorf("failed to update card state for %s: %w", cardID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read update result for %s: %w", cardID, err)
		}
		if n == 0 {
			return fmt.Errorf("card %s at revision %d: %w", cardID, expectedRevision, domain.ErrConflict)
		}

		return tx.Commit()
	})
}

// isNonceConflict detects the unique-index violation on (card_id, nonce).
func isNonceConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: review_events")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Package queue selects which due cards to present next in a study
// session. The Selector is a restartable iterator: every Next call
// re-queries the store, so a grade committed between calls is reflected
// immediately and no due list goes stale mid-session.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// Store is the slice of persistence the selector needs.
type Store interface {
	ListDueCards(deckID string, now time.Time, states []domain.State, limit int) ([]domain.DueCard, error)
	NextNewCard(deckID string) (*domain.Card, error)
}

// Policy bounds one study session.
type Policy struct {
	// Limit caps the total number of cards served; zero means unlimited.
	Limit int
	// NewCardQuota caps the number of New cards introduced this session.
	NewCardQuota int
	// NewPerDue interleaves one New card after this many due cards.
	NewPerDue int
}

// DefaultPolicy mirrors the out-of-the-box session bounds.
func DefaultPolicy() Policy {
	return Policy{Limit: 200, NewCardQuota: 20, NewPerDue: 5}
}

// Selector yields due cards one at a time for a single session.
// Overdue Review/Relearning cards come first (most overdue first), then
// Learning cards by ascending due date, with New cards interleaved at the
// configured ratio. Safe for concurrent use; one session's callers share
// one Selector.
type Selector struct {
	store  Store
	deckID string
	policy Policy

	mu          sync.Mutex
	served      int
	newServed   int
	dueSinceNew int
	// lastID dedupes repeated Next calls for a still-ungraded head card so
	// they don't inflate the session counters. lastWasNew marks that head
	// as a New card served through the interleave.
	lastID     string
	lastWasNew bool
}

// NewSelector creates a Selector for one session over one deck
// (or all decks when deckID is empty).
func NewSelector(store Store, deckID string, policy Policy) *Selector {
	if policy.NewPerDue < 1 {
		policy.NewPerDue = 1
	}
	return &Selector{store: store, deckID: deckID, policy: policy}
}

// Next returns the next card to present, or nil when the session is
// exhausted. A card stays at the head of the queue until a grade for it is
// committed; calling Next again without grading returns it again.
func (s *Selector) Next(now time.Time) (*domain.DueCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.policy.Limit > 0 && s.served >= s.policy.Limit {
		return nil, nil
	}

	// A New card served through the interleave stays at the head until a
	// grade moves it out of the New state.
	if s.lastWasNew {
		card, err := s.store.NextNewCard(s.deckID)
		if err != nil {
			return nil, fmt.Errorf("next new card: %w", err)
		}
		if card != nil && card.ID == s.lastID {
			return &domain.DueCard{CardID: card.ID, DeckID: card.DeckID, State: domain.New}, nil
		}
		s.lastWasNew = false
	}

	// Interleave: after NewPerDue due cards, inject a New card so fresh
	// material is bounded even when the queue is behind.
	if s.newQuotaLeft() && s.dueSinceNew >= s.policy.NewPerDue {
		card, err := s.nextNew()
		if err != nil {
			return nil, err
		}
		if card != nil {
			return card, nil
		}
	}

	// Overdue Review/Relearning cards first, most overdue first, to bound
	// worst-case staleness.
	due, err := s.store.ListDueCards(s.deckID, now, []domain.State{domain.Review, domain.Relearning}, 1)
	if err != nil {
		return nil, fmt.Errorf("list due review cards: %w", err)
	}
	if len(due) == 0 {
		// Learning cards have short fuses and must not starve.
		due, err = s.store.ListDueCards(s.deckID, now, []domain.State{domain.Learning}, 1)
		if err != nil {
			return nil, fmt.Errorf("list due learning cards: %w", err)
		}
	}
	if len(due) > 0 {
		if due[0].CardID != s.lastID {
			s.served++
			s.dueSinceNew++
			s.lastID = due[0].CardID
			s.lastWasNew = false
		}
		return &due[0], nil
	}

	// Nothing due: drain remaining New quota.
	if s.newQuotaLeft() {
		card, err := s.nextNew()
		if err != nil {
			return nil, err
		}
		if card != nil {
			return card, nil
		}
	}
	return nil, nil
}

func (s *Selector) newQuotaLeft() bool {
	return s.newServed < s.policy.NewCardQuota
}

func (s *Selector) nextNew() (*domain.DueCard, error) {
	card, err := s.store.NextNewCard(s.deckID)
	if err != nil {
		return nil, fmt.Errorf("next new card: %w", err)
	}
	if card == nil {
		return nil, nil
	}
	if card.ID != s.lastID {
		s.served++
		s.newServed++
		s.dueSinceNew = 0
		s.lastID = card.ID
		s.lastWasNew = true
	}
	return &domain.DueCard{CardID: card.ID, DeckID: card.DeckID, State: domain.New}, nil
}

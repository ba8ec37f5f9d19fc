package queue

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

// fakeStore serves cards from in-memory slices. Grading is simulated by
// removing the card from its slice.
type fakeStore struct {
	due []domain.DueCard
	new []domain.Card
}

func (f *fakeStore) ListDueCards(deckID string, now time.Time, states []domain.State, limit int) ([]domain.DueCard, error) {
	wanted := make(map[domain.State]bool)
	for _, st := range states {
		wanted[st] = true
	}
	var out []domain.DueCard
	for _, c := range f.due {
		if wanted[c.State] && !c.DueAt.After(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) NextNewCard(deckID string) (*domain.Card, error) {
	if len(f.new) == 0 {
		return nil, nil
	}
	c := f.new[0]
	return &c, nil
}

func (f *fakeStore) grade(cardID string) {
	for i, c := range f.due {
		if c.CardID == cardID {
			f.due = append(f.due[:i], f.due[i+1:]...)
			return
		}
	}
	for i, c := range f.new {
		if c.ID == cardID {
			f.new = append(f.new[:i], f.new[i+1:]...)
			return
		}
	}
}

func dueCard(id string, state domain.State, due time.Time) domain.DueCard {
	return domain.DueCard{CardID: id, DeckID: "d", State: state, DueAt: due}
}

func newCard(id string) domain.Card {
	return domain.Card{ID: id, DeckID: "d"}
}

// drain runs the selector to exhaustion, grading each served card.
func drain(t *testing.T, s *Selector, store *fakeStore, now time.Time) []string {
	t.Helper()
	var order []string
	for {
		card, err := s.Next(now)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if card == nil {
			return order
		}
		order = append(order, card.CardID)
		store.grade(card.CardID)
		if len(order) > 100 {
			t.Fatal("selector did not terminate")
		}
	}
}

func TestNeverServesFutureCards(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []domain.DueCard{
		dueCard("future", domain.Review, now.Add(time.Hour)),
	}}

	s := NewSelector(store, "d", DefaultPolicy())
	card, err := s.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	if card != nil {
		t.Errorf("served future card %s", card.CardID)
	}
}

func TestReviewBeforeLearningMostOverdueFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []domain.DueCard{
		dueCard("learn", domain.Learning, now.Add(-3*time.Hour)),
		dueCard("rev-recent", domain.Review, now.Add(-time.Hour)),
		dueCard("rev-old", domain.Review, now.Add(-48*time.Hour)),
		dueCard("relearn", domain.Relearning, now.Add(-24*time.Hour)),
	}}

	order := drain(t, NewSelector(store, "d", DefaultPolicy()), store, now)

	want := []string{"rev-old", "relearn", "rev-recent", "learn"}
	if len(order) != len(want) {
		t.Fatalf("served %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("served %v, want %v", order, want)
		}
	}
}

func TestNewCardsInterleaved(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		due: []domain.DueCard{
			dueCard("r1", domain.Review, now.Add(-4*time.Hour)),
			dueCard("r2", domain.Review, now.Add(-3*time.Hour)),
			dueCard("r3", domain.Review, now.Add(-2*time.Hour)),
			dueCard("r4", domain.Review, now.Add(-time.Hour)),
		},
		new: []domain.Card{newCard("n1"), newCard("n2")},
	}

	policy := Policy{Limit: 0, NewCardQuota: 10, NewPerDue: 2}
	order := drain(t, NewSelector(store, "d", policy), store, now)

	want := []string{"r1", "r2", "n1", "r3", "r4", "n2"}
	if len(order) != len(want) {
		t.Fatalf("served %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("served %v, want %v", order, want)
		}
	}
}

func TestNewCardQuota(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		new: []domain.Card{newCard("n1"), newCard("n2"), newCard("n3")},
	}

	policy := Policy{Limit: 0, NewCardQuota: 2, NewPerDue: 5}
	order := drain(t, NewSelector(store, "d", policy), store, now)

	if len(order) != 2 {
		t.Errorf("served %d new cards, want quota 2: %v", len(order), order)
	}
}

func TestSessionLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []domain.DueCard{
		dueCard("r1", domain.Review, now.Add(-3*time.Hour)),
		dueCard("r2", domain.Review, now.Add(-2*time.Hour)),
		dueCard("r3", domain.Review, now.Add(-time.Hour)),
	}}

	policy := Policy{Limit: 2, NewCardQuota: 0, NewPerDue: 5}
	order := drain(t, NewSelector(store, "d", policy), store, now)

	if len(order) != 2 {
		t.Errorf("served %d cards, want limit 2: %v", len(order), order)
	}
}

func TestUngradedHeadRepeatsWithoutConsumingLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []domain.DueCard{
		dueCard("r1", domain.Review, now.Add(-2*time.Hour)),
		dueCard("r2", domain.Review, now.Add(-time.Hour)),
	}}

	s := NewSelector(store, "d", Policy{Limit: 2, NewCardQuota: 0, NewPerDue: 5})

	for i := 0; i < 5; i++ {
		card, err := s.Next(now)
		if err != nil {
			t.Fatal(err)
		}
		if card == nil || card.CardID != "r1" {
			t.Fatalf("call %d: got %v, want r1 until graded", i, card)
		}
	}

	store.grade("r1")
	card, err := s.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	if card == nil || card.CardID != "r2" {
		t.Fatalf("expected r2 after grading r1, got %v", card)
	}
}

func TestUngradedNewHeadRepeats(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{
		due: []domain.DueCard{
			dueCard("r1", domain.Review, now.Add(-2*time.Hour)),
			dueCard("r2", domain.Review, now.Add(-time.Hour)),
		},
		new: []domain.Card{newCard("n1")},
	}

	s := NewSelector(store, "d", Policy{Limit: 0, NewCardQuota: 5, NewPerDue: 1})

	card, err := s.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	if card == nil || card.CardID != "r1" {
		t.Fatalf("expected r1 first, got %v", card)
	}
	store.grade("r1")

	card, err = s.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	if card == nil || card.CardID != "n1" {
		t.Fatalf("expected interleaved n1, got %v", card)
	}

	// Ungraded: the New head must stay at the head, not be skipped for r2.
	for i := 0; i < 3; i++ {
		card, err = s.Next(now)
		if err != nil {
			t.Fatal(err)
		}
		if card == nil || card.CardID != "n1" {
			t.Fatalf("call %d: expected n1 until graded, got %v", i, card)
		}
	}

	store.grade("n1")
	card, err = s.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	if card == nil || card.CardID != "r2" {
		t.Fatalf("expected r2 after grading n1, got %v", card)
	}
}

func TestConcurrentNextCalls(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []domain.DueCard{
		dueCard("r1", domain.Review, now.Add(-2*time.Hour)),
		dueCard("r2", domain.Review, now.Add(-time.Hour)),
	}}

	s := NewSelector(store, "d", Policy{Limit: 2, NewCardQuota: 0, NewPerDue: 5})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				card, err := s.Next(now)
				if err != nil {
					t.Errorf("Next: %v", err)
					return
				}
				if card == nil || card.CardID != "r1" {
					t.Errorf("got %v, want the r1 head", card)
					return
				}
			}
		}()
	}
	wg.Wait()

	// Repeated calls for the ungraded head must not consume the session
	// limit, no matter how many callers shared the selector.
	store.grade("r1")
	card, err := s.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	if card == nil || card.CardID != "r2" {
		t.Fatalf("expected r2 within the limit, got %v", card)
	}
}

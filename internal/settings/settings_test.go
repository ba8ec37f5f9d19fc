package settings

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

type fakeStore struct {
	override *domain.ConfigOverride
	err      error
}

func (f *fakeStore) GetDeckOverride(deckID string) (*domain.ConfigOverride, error) {
	return f.override, f.err
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestMergeNilOverrideInheritsDefaults(t *testing.T) {
	base := Default()
	got := Merge(base, nil)
	if !reflect.DeepEqual(got, base) {
		t.Errorf("Merge(base, nil) = %+v, want %+v", got, base)
	}
}

func TestMergeOverlaysSetFields(t *testing.T) {
	base := Default()
	ov := &domain.ConfigOverride{
		LearningSteps:         []time.Duration{5 * time.Minute},
		StartingEase:          floatPtr(2.2),
		MaxIntervalDays:       intPtr(180),
		LapseIntervalFraction: floatPtr(0.2),
		LeechThreshold:        intPtr(4),
	}

	got := Merge(base, ov)

	if !reflect.DeepEqual(got.LearningSteps, []time.Duration{5 * time.Minute}) {
		t.Errorf("LearningSteps = %v, want [5m]", got.LearningSteps)
	}
	if got.StartingEase != 2.2 {
		t.Errorf("StartingEase = %v, want 2.2", got.StartingEase)
	}
	if got.MaxIntervalDays != 180 {
		t.Errorf("MaxIntervalDays = %v, want 180", got.MaxIntervalDays)
	}
	if got.LapseIntervalFraction != 0.2 {
		t.Errorf("LapseIntervalFraction = %v, want 0.2", got.LapseIntervalFraction)
	}
	if got.LeechThreshold != 4 {
		t.Errorf("LeechThreshold = %v, want 4", got.LeechThreshold)
	}

	// Unset fields inherit.
	if got.GraduatingIntervalDays != base.GraduatingIntervalDays {
		t.Errorf("GraduatingIntervalDays = %v, want inherited %v", got.GraduatingIntervalDays, base.GraduatingIntervalDays)
	}
	if got.IntervalModifier != base.IntervalModifier {
		t.Errorf("IntervalModifier = %v, want inherited %v", got.IntervalModifier, base.IntervalModifier)
	}
}

func TestMergeCopiesLearningSteps(t *testing.T) {
	base := Default()
	got := Merge(base, nil)
	got.LearningSteps[0] = time.Hour
	if base.LearningSteps[0] == time.Hour {
		t.Error("Merge shares the LearningSteps slice with its input")
	}
}

func TestResolveValidDeck(t *testing.T) {
	store := &fakeStore{override: &domain.ConfigOverride{LeechThreshold: intPtr(5)}}
	r := NewResolver(store, Default())

	cfg, err := r.Resolve("deck-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.LeechThreshold != 5 {
		t.Errorf("LeechThreshold = %d, want 5", cfg.LeechThreshold)
	}
	if cfg.StartingEase != 2.5 {
		t.Errorf("StartingEase = %v, want inherited 2.5", cfg.StartingEase)
	}
}

func TestResolveRejectsInvalidMerge(t *testing.T) {
	tests := []struct {
		name string
		ov   domain.ConfigOverride
	}{
		{"empty learning steps", domain.ConfigOverride{LearningSteps: []time.Duration{}}},
		{"negative step", domain.ConfigOverride{LearningSteps: []time.Duration{-time.Minute}}},
		{"modifier out of range", domain.ConfigOverride{IntervalModifier: floatPtr(3.0)}},
		{"ease below floor", domain.ConfigOverride{StartingEase: floatPtr(1.0)}},
		{"zero max interval", domain.ConfigOverride{MaxIntervalDays: intPtr(0)}},
		{"fraction above one", domain.ConfigOverride{LapseIntervalFraction: floatPtr(1.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ov := tt.ov
			r := NewResolver(&fakeStore{override: &ov}, Default())
			_, err := r.Resolve("deck-1")
			if !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestResolvePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("disk gone")
	r := NewResolver(&fakeStore{err: storeErr}, Default())
	_, err := r.Resolve("deck-1")
	if !errors.Is(err, storeErr) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/storage"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"https://github.com/user/notes.git", SourceGit},
		{"http://example.com/notes.git", SourceGit},
		{"git@github.com:user/notes.git", SourceGit},
		{"https://github.com/user/notes", SourceGit},
		{"/home/user/notes", SourceLocal},
		{"./notes", SourceLocal},
	}

	for _, tt := range tests {
		if got := DetectType(tt.path); got != tt.want {
			t.Errorf("DetectType(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestGitURLToLocalPath(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/user/notes.git", filepath.Join("base", "github.com", "user", "notes")},
		{"git@github.com:user/notes.git", filepath.Join("base", "github.com", "user", "notes")},
	}

	for _, tt := range tests {
		got, err := gitURLToLocalPath("base", tt.url)
		if err != nil {
			t.Errorf("gitURLToLocalPath(%q): %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("gitURLToLocalPath(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}

	if _, err := gitURLToLocalPath("base", "not a url at all"); err == nil {
		t.Error("expected error for unparseable URL")
	}
}

func TestRunSyncLocalSource(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	deck, err := db.CreateDeck("notes")
	if err != nil {
		t.Fatal(err)
	}

	notesDir := t.TempDir()
	notesFile := filepath.Join(notesDir, "go.md")
	content := `Q: What is a channel?
A: A typed conduit between goroutines.
---
Q: What does defer do?
A: Schedules a call to run when the function returns.
`
	if err := os.WriteFile(notesFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sourceID, err := db.InsertSource(deck.ID, notesDir, SourceLocal)
	if err != nil {
		t.Fatal(err)
	}

	if err := RunSync(db, t.TempDir()); err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	n, err := db.CountCards(deck.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 imported cards, got %d", n)
	}

	// A second sync of unchanged content must not duplicate anything.
	if err := RunSync(db, t.TempDir()); err != nil {
		t.Fatalf("second RunSync: %v", err)
	}
	n, err = db.CountCards(deck.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 cards after re-sync, got %d", n)
	}

	sources, err := db.GetAllSources()
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0].ID != sourceID || !sources[0].LastScanned.Valid {
		t.Errorf("expected scanned source %d, got %+v", sourceID, sources)
	}
}

func TestRunSyncRemovesUnreviewedOrphans(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	deck, err := db.CreateDeck("notes")
	if err != nil {
		t.Fatal(err)
	}

	notesDir := t.TempDir()
	notesFile := filepath.Join(notesDir, "go.md")
	twoCards := `Q: Kept question
A: Kept answer
---
Q: Reviewed question
A: Reviewed answer
`
	if err := os.WriteFile(notesFile, []byte(twoCards), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertSource(deck.ID, notesDir, SourceLocal); err != nil {
		t.Fatal(err)
	}
	if err := RunSync(db, t.TempDir()); err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	// Review the second card so the orphan pass must keep it.
	sources, err := db.GetAllSources()
	if err != nil {
		t.Fatal(err)
	}
	cards, err := db.ListCardsBySource(sources[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	var reviewedID string
	for _, c := range cards {
		if c.Front == "Reviewed question" {
			reviewedID = c.ID
		}
	}
	if reviewedID == "" {
		t.Fatal("reviewed card not found after import")
	}
	now := time.Now().UTC()
	due := now.Add(time.Minute)
	st := domain.CardState{State: domain.Learning, EaseFactor: 2.5, DueAt: &due, LastReviewedAt: &now}
	ev := domain.ReviewEvent{CardID: reviewedID, DeckID: deck.ID, Nonce: "n1", Timestamp: now, Grade: domain.Good, EaseBefore: 2.5, EaseAfter: 2.5}
	if err := db.CommitSchedule(reviewedID, 0, st, ev); err != nil {
		t.Fatalf("CommitSchedule: %v", err)
	}

	// The source now drops both cards.
	if err := os.WriteFile(notesFile, []byte("Q: Brand new\nA: Card\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RunSync(db, t.TempDir()); err != nil {
		t.Fatalf("second RunSync: %v", err)
	}

	cards, err = db.ListCardsBySource(sources[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	fronts := make(map[string]bool)
	for _, c := range cards {
		fronts[c.Front] = true
	}
	if fronts["Kept question"] {
		t.Error("unreviewed orphan should have been deleted")
	}
	if !fronts["Reviewed question"] {
		t.Error("reviewed orphan must be kept")
	}
	if !fronts["Brand new"] {
		t.Error("new card missing after re-sync")
	}
}

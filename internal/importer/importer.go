// Package importer reconciles registered card sources into their decks:
// new cards are inserted in the New state, and cards that vanished from a
// source are removed only if they were never reviewed.
package importer

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/recall/internal/cardhash"
	"github.com/conorfennell/recall/internal/gitsource"
	"github.com/conorfennell/recall/internal/parser"
	"github.com/conorfennell/recall/internal/storage"
)

// SourceType values stored on a source row.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// DetectType classifies a source path as a git URL or a local directory.
func DetectType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return SourceGit
	}
	return SourceLocal
}

// RunSync iterates over all registered sources and reconciles each one.
// Per-source failures are logged and skipped so one broken source cannot
// block the rest.
func RunSync(db *storage.DB, reposDir string) error {
	slog.Info("starting sync for all sources")
	sources, err := db.GetAllSources()
	if err != nil {
		return fmt.Errorf("get sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("no sources configured")
		return nil
	}

	if err := os.MkdirAll(reposDir, os.ModePerm); err != nil {
		return fmt.Errorf("create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path, "deck", source.DeckID)

		localPath := source.Path
		if source.Type == SourceGit {
			localPath, err = gitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("cannot determine local path for git source", "url", source.Path, "error", err)
				continue
			}
			if err := gitsource.Sync(source.Path, localPath); err != nil {
				slog.Error("git sync failed", "url", source.Path, "error", err)
				continue
			}
		}

		if err := reconcile(db, source, localPath); err != nil {
			slog.Error("reconcile failed", "source_id", source.ID, "error", err)
		}
	}
	slog.Info("sync complete")
	return nil
}

// reconcile walks one source directory, inserts unseen cards into the
// source's deck, and removes never-reviewed cards the source dropped.
func reconcile(db *storage.DB, source storage.Source, dir string) error {
	foundHashes := make(map[string]bool)
	var parseErrors []error
	var inserted int

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			parseErrors = append(parseErrors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, card := range fileCards {
			card.DeckID = source.DeckID
			card.SourceID = source.ID
			card.ContentHash = cardhash.Hash(card)
			foundHashes[card.ContentHash] = true

			existing, findErr := db.FindCardByHash(source.DeckID, card.ContentHash)
			if findErr != nil {
				parseErrors = append(parseErrors, fmt.Errorf("db check for %s: %w", card.ContentHash, findErr))
				continue
			}
			if existing == nil {
				if insertErr := db.InsertCard(&card); insertErr != nil {
					parseErrors = append(parseErrors, fmt.Errorf("db insert for %s: %w", card.ContentHash, insertErr))
					continue
				}
				inserted++
			}
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walking %s: %w", dir, walkErr)
	}

	dbCards, err := db.ListCardsBySource(source.ID)
	if err != nil {
		return fmt.Errorf("list cards for source %d: %w", source.ID, err)
	}

	var orphansDeleted, orphansKept int
	for _, dbCard := range dbCards {
		if foundHashes[dbCard.ContentHash] {
			continue
		}
		deleted, err := db.DeleteCardIfUnreviewed(dbCard.ID)
		if err != nil {
			slog.Warn("failed to delete orphaned card", "card", dbCard.ID, "error", err)
			continue
		}
		if deleted {
			orphansDeleted++
		} else {
			// Reviewed cards stay: dropping them would orphan log events.
			orphansKept++
		}
	}

	if err := db.UpdateSourceLastScanned(source.ID); err != nil {
		slog.Warn("failed to update last scanned", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", dir,
		"inserted", inserted,
		"orphans_deleted", orphansDeleted,
		"orphans_kept", orphansKept,
		"errors", len(parseErrors),
	)
	for _, e := range parseErrors {
		slog.Warn("sync issue", "error", e)
	}
	return nil
}

// gitURLToLocalPath maps a git URL to a stable checkout path under baseDir.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// git@host:user/repo.git form.
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitized := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitized), nil
}

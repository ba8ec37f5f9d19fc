// Package web exposes the scheduling core over a JSON HTTP API. The
// handlers are a thin shell: all scheduling decisions live in the
// scheduler, queue, stats, and settings packages.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/importer"
	"github.com/conorfennell/recall/internal/queue"
	"github.com/conorfennell/recall/internal/scheduler"
	"github.com/conorfennell/recall/internal/settings"
	"github.com/conorfennell/recall/internal/stats"
	"github.com/conorfennell/recall/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	resolver *settings.Resolver
	stats    *stats.Aggregator
	policy   queue.Policy
	reposDir string
	router   *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*queue.Selector
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, resolver *settings.Resolver, agg *stats.Aggregator, policy queue.Policy, reposDir string) *Server {
	s := &Server{
		db:       db,
		resolver: resolver,
		stats:    agg,
		policy:   policy,
		reposDir: reposDir,
		router:   http.NewServeMux(),
		sessions: make(map[string]*queue.Selector),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/decks", s.handleDecks())
	s.router.HandleFunc("/decks/", s.handleDeckSubpath())
	s.router.HandleFunc("/cards/", s.handleGetCard())
	s.router.HandleFunc("/review/", s.handlePostReview())
	s.router.HandleFunc("/stats/heatmap", s.handleHeatmap())
	s.router.HandleFunc("/stats/study", s.handleStudyStats())
	s.router.HandleFunc("/sources", s.handleSources())
	s.router.HandleFunc("/sources/", s.handleDeleteSource())
	s.router.HandleFunc("/sync", s.handlePostSync())
}

// selector returns the session selector for a deck, creating one lazily.
// Grading commits mutate card state directly, so the selector itself holds
// only interleave counters and can be recreated at any time.
func (s *Server) selector(deckID string) *queue.Selector {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.sessions[deckID]
	if !ok {
		sel = queue.NewSelector(s.db, deckID, s.policy)
		s.sessions[deckID] = sel
	}
	return sel
}

func (s *Server) resetSelector(deckID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, deckID)
}

func (s *Server) handleDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			decks, err := s.db.ListDecks()
			if err != nil {
				internalError(w, "list decks", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"decks": decks})
		case http.MethodPost:
			var req struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
				writeError(w, http.StatusBadRequest, "deck name is required")
				return
			}
			deck, err := s.db.CreateDeck(strings.TrimSpace(req.Name))
			if err != nil {
				internalError(w, "create deck", err)
				return
			}
			writeJSON(w, http.StatusCreated, deck)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// handleDeckSubpath dispatches /decks/{id}/next, /decks/{id}/stats and
// /decks/{id}/session.
func (s *Server) handleDeckSubpath() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/decks/")
		deckID, action, _ := strings.Cut(rest, "/")
		if deckID == "" {
			http.NotFound(w, r)
			return
		}

		switch {
		case action == "next" && r.Method == http.MethodGet:
			s.serveNextCard(w, deckID)
		case action == "stats" && r.Method == http.MethodGet:
			s.serveDeckStats(w, deckID)
		case action == "session" && r.Method == http.MethodPost:
			s.resetSelector(deckID)
			writeJSON(w, http.StatusOK, map[string]any{"reset": true})
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) serveNextCard(w http.ResponseWriter, deckID string) {
	if _, err := s.db.GetDeck(deckID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "deck not found")
			return
		}
		internalError(w, "get deck", err)
		return
	}

	due, err := s.selector(deckID).Next(time.Now())
	if err != nil {
		internalError(w, "select next card", err)
		return
	}
	if due == nil {
		writeJSON(w, http.StatusOK, map[string]any{"done": true})
		return
	}

	card, err := s.db.GetCard(due.CardID)
	if err != nil {
		internalError(w, "load due card", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"card_id": card.ID,
		"deck_id": card.DeckID,
		"front":   card.Front,
		"context": card.Context,
		"state":   card.State.String(),
	})
}

func (s *Server) serveDeckStats(w http.ResponseWriter, deckID string) {
	if _, err := s.db.GetDeck(deckID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "deck not found")
			return
		}
		internalError(w, "get deck", err)
		return
	}
	ds, err := s.stats.DeckStats(deckID, time.Now())
	if err != nil {
		internalError(w, "deck stats", err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// handleGetCard reveals a card's full content (the answer view).
func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/cards/")
		card, err := s.db.GetCard(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "card not found")
				return
			}
			internalError(w, "get card", err)
			return
		}
		writeJSON(w, http.StatusOK, cardResponse(card, false))
	}
}

// handlePostReview applies one grading action: resolve the deck config,
// run the scheduler, and commit state plus event atomically.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		cardID := strings.TrimPrefix(r.URL.Path, "/review/")

		var req struct {
			Grade string `json:"grade"`
			Nonce string `json:"nonce"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		var grade domain.Grade
		if err := grade.UnmarshalText([]byte(req.Grade)); err != nil {
			writeError(w, http.StatusBadRequest, "invalid grade: "+req.Grade)
			return
		}
		nonce := req.Nonce
		if nonce == "" {
			// Without a client nonce a network retry cannot be deduplicated,
			// but the commit is still protected against concurrent races.
			nonce = uuid.NewString()
		}

		card, err := s.db.GetCard(cardID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "card not found")
				return
			}
			internalError(w, "get card", err)
			return
		}

		cfg, err := s.resolver.Resolve(card.DeckID)
		if err != nil {
			if errors.Is(err, domain.ErrConfigInvalid) {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			internalError(w, "resolve config", err)
			return
		}

		next, ev, err := scheduler.Schedule(card.CardState, grade, cfg, time.Now())
		if err != nil {
			if errors.Is(err, domain.ErrInvalidGrade) || errors.Is(err, domain.ErrCorruptState) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			internalError(w, "schedule", err)
			return
		}
		ev.CardID = card.ID
		ev.DeckID = card.DeckID
		ev.Nonce = nonce

		err = s.db.CommitSchedule(card.ID, card.Revision, next, ev)
		switch {
		case errors.Is(err, domain.ErrDuplicateReview):
			// The same nonce was already committed: idempotent success,
			// return the state that commit produced.
			current, getErr := s.db.GetCard(card.ID)
			if getErr != nil {
				internalError(w, "reload card", getErr)
				return
			}
			resp := cardResponse(current, false)
			resp["duplicate"] = true
			writeJSON(w, http.StatusOK, resp)
			return
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "card changed concurrently; re-read and retry once")
			return
		case err != nil:
			internalError(w, "commit schedule", err)
			return
		}

		card.CardState = next
		resp := cardResponse(card, ev.Leech)
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleHeatmap() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		deckID := r.URL.Query().Get("deck")
		loc := s.stats.Location()
		from, err := parseDateParam(r.URL.Query().Get("from"), time.Now().AddDate(0, 0, -365), loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		to, err := parseDateParam(r.URL.Query().Get("to"), time.Now().AddDate(0, 0, 1), loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		buckets, err := s.stats.Heatmap(deckID, from, to)
		if err != nil {
			internalError(w, "heatmap", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"heatmap": buckets})
	}
}

func (s *Server) handleStudyStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		st, err := s.stats.StudyStats(time.Now())
		if err != nil {
			internalError(w, "study stats", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			sources, err := s.db.GetAllSources()
			if err != nil {
				internalError(w, "list sources", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
		case http.MethodPost:
			var req struct {
				DeckID string `json:"deck_id"`
				Path   string `json:"path"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" || req.DeckID == "" {
				writeError(w, http.StatusBadRequest, "deck_id and path are required")
				return
			}
			if _, err := s.db.GetDeck(req.DeckID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeError(w, http.StatusNotFound, "deck not found")
					return
				}
				internalError(w, "get deck", err)
				return
			}
			id, err := s.db.InsertSource(req.DeckID, req.Path, importer.DetectType(req.Path))
			if err != nil {
				internalError(w, "insert source", err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"id": id})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		idStr := strings.TrimPrefix(r.URL.Path, "/sources/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid source ID")
			return
		}
		if err := s.db.DeleteSource(id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "source not found")
				return
			}
			internalError(w, "delete source", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

// handlePostSync runs the importer in the foreground.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := importer.RunSync(s.db, s.reposDir); err != nil {
			internalError(w, "sync", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"synced": true})
	}
}

func cardResponse(card *domain.Card, leech bool) map[string]any {
	resp := map[string]any{
		"card_id":       card.ID,
		"deck_id":       card.DeckID,
		"front":         card.Front,
		"back":          card.Back,
		"context":       card.Context,
		"state":         card.State.String(),
		"interval_days": card.IntervalDays,
		"ease_factor":   card.EaseFactor,
		"lapses":        card.Lapses,
	}
	if card.DueAt != nil {
		resp["due_at"] = card.DueAt.Format(time.RFC3339)
	}
	if leech {
		resp["leech"] = true
	}
	return resp
}

// parseDateParam reads a query date. Date-only values are midnight in the
// learner's zone so range boundaries match the heatmap's day buckets.
func parseDateParam(s string, fallback time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter, op string, err error) {
	slog.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

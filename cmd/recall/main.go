package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/conorfennell/recall/internal/config"
	"github.com/conorfennell/recall/internal/importer"
	"github.com/conorfennell/recall/internal/queue"
	"github.com/conorfennell/recall/internal/settings"
	"github.com/conorfennell/recall/internal/stats"
	"github.com/conorfennell/recall/internal/storage"
	"github.com/conorfennell/recall/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("recall", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to a YAML config file")
	flags.String("db_path", "recall.db", "Path to the SQLite database file")
	flags.String("listen_addr", ":8080", "HTTP listen address")
	flags.String("timezone", "UTC", "IANA time zone for statistics")
	flags.String("repos_dir", "repos", "Directory for git source checkouts")
	addDeck := flags.String("add-deck", "", "Create a deck with the given name and exit")
	addSource := flags.String("add-source", "", "Register a card source (local path or git URL) and exit")
	sourceDeck := flags.String("deck", "", "Deck name for --add-source")
	syncOnly := flags.Bool("sync", false, "Sync all card sources and exit")
	flags.Parse(os.Args[1:])

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	switch {
	case *addDeck != "":
		deck, err := db.CreateDeck(*addDeck)
		if err != nil {
			slog.Error("failed to create deck", "name", *addDeck, "error", err)
			os.Exit(1)
		}
		fmt.Printf("created deck %s (%s)\n", deck.Name, deck.ID)
		return

	case *addSource != "":
		if *sourceDeck == "" {
			slog.Error("--add-source requires --deck")
			os.Exit(1)
		}
		deck, err := db.GetDeckByName(*sourceDeck)
		if err != nil {
			slog.Error("failed to look up deck", "name", *sourceDeck, "error", err)
			os.Exit(1)
		}
		if deck == nil {
			slog.Error("deck does not exist; create it with --add-deck", "name", *sourceDeck)
			os.Exit(1)
		}
		id, err := db.InsertSource(deck.ID, *addSource, importer.DetectType(*addSource))
		if err != nil {
			slog.Error("failed to register source", "path", *addSource, "error", err)
			os.Exit(1)
		}
		fmt.Printf("registered source %d for deck %s\n", id, deck.Name)
		return

	case *syncOnly:
		if err := importer.RunSync(db, cfg.ReposDir); err != nil {
			slog.Error("sync failed", "error", err)
			os.Exit(1)
		}
		return
	}

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}
	algoDefaults, err := cfg.AlgorithmDefaults()
	if err != nil {
		slog.Error("invalid algorithm defaults", "error", err)
		os.Exit(1)
	}

	resolver := settings.NewResolver(db, algoDefaults)
	aggregator := stats.NewAggregator(db, loc)
	policy := queue.Policy{
		Limit:        cfg.Session.Limit,
		NewCardQuota: cfg.Session.NewCardQuota,
		NewPerDue:    cfg.Session.NewPerDue,
	}

	server := web.NewServer(db, resolver, aggregator, policy, cfg.ReposDir)
	slog.Info("listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

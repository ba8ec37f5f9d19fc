package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/recall/internal/domain"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "recall.db" || cfg.ListenAddr != ":8080" || cfg.Timezone != "UTC" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Session.NewPerDue != 5 {
		t.Errorf("Session.NewPerDue = %d, want 5", cfg.Session.NewPerDue)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
db_path: /data/cards.db
timezone: Europe/Dublin
session:
  limit: 50
  new_card_quota: 10
algorithm:
  learning_steps: ["2m", "15m"]
  leech_threshold: 5
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/data/cards.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Timezone != "Europe/Dublin" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.Session.Limit != 50 || cfg.Session.NewCardQuota != 10 {
		t.Errorf("Session = %+v", cfg.Session)
	}
	// Unset keys keep their defaults.
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want default", cfg.ListenAddr)
	}

	algo, err := cfg.AlgorithmDefaults()
	if err != nil {
		t.Fatalf("AlgorithmDefaults: %v", err)
	}
	if len(algo.LearningSteps) != 2 || algo.LearningSteps[0] != 2*time.Minute {
		t.Errorf("LearningSteps = %v", algo.LearningSteps)
	}
	if algo.LeechThreshold != 5 {
		t.Errorf("LeechThreshold = %d, want 5", algo.LeechThreshold)
	}
	if algo.StartingEase != 2.5 {
		t.Errorf("StartingEase = %v, want built-in 2.5", algo.StartingEase)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "listen_addr: \":9999\"\n")
	t.Setenv("RECALL_LISTEN_ADDR", ":7777")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Errorf("ListenAddr = %q, want env value :7777", cfg.ListenAddr)
	}
}

func TestLoadNestedEnvKey(t *testing.T) {
	t.Setenv("RECALL_SESSION__NEW_PER_DUE", "3")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.NewPerDue != 3 {
		t.Errorf("Session.NewPerDue = %d, want 3", cfg.Session.NewPerDue)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/no/such/config.yaml", nil); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestAlgorithmDefaultsRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Algorithm.StartingEase = 0.5

	if _, err := cfg.AlgorithmDefaults(); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}

	cfg = Default()
	cfg.Algorithm.LearningSteps = []string{"banana"}
	if _, err := cfg.AlgorithmDefaults(); err == nil {
		t.Error("expected error for unparseable learning step")
	}
}

func TestLocation(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc != time.UTC {
		t.Errorf("Location = %v, want UTC", loc)
	}

	cfg.Timezone = "Not/AZone"
	if _, err := cfg.Location(); err == nil {
		t.Error("expected error for bogus timezone")
	}
}

// Package config loads the application configuration from defaults, an
// optional YAML file, RECALL_-prefixed environment variables, and CLI
// flags, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/settings"
)

// Session bounds one study session.
type Session struct {
	Limit        int `koanf:"limit" validate:"gte=0"`
	NewCardQuota int `koanf:"new_card_quota" validate:"gte=0"`
	NewPerDue    int `koanf:"new_per_due" validate:"gte=1"`
}

// Algorithm overrides the built-in global scheduling defaults. Zero-valued
// fields keep the built-in value.
type Algorithm struct {
	LearningSteps          []string `koanf:"learning_steps"`
	GraduatingIntervalDays int      `koanf:"graduating_interval_days"`
	EasyIntervalDays       int      `koanf:"easy_interval_days"`
	StartingEase           float64  `koanf:"starting_ease"`
	EasyEaseBonus          float64  `koanf:"easy_ease_bonus"`
	HardEasePenalty        float64  `koanf:"hard_ease_penalty"`
	LapseEasePenalty       float64  `koanf:"lapse_ease_penalty"`
	HardIntervalFactor     float64  `koanf:"hard_interval_factor"`
	EasyIntervalBonus      float64  `koanf:"easy_interval_bonus"`
	IntervalModifier       float64  `koanf:"interval_modifier"`
	MaxIntervalDays        int      `koanf:"max_interval_days"`
	LapseIntervalFraction  float64  `koanf:"lapse_interval_fraction"`
	LeechThreshold         int      `koanf:"leech_threshold"`
}

// Config is the full application configuration.
type Config struct {
	DBPath     string    `koanf:"db_path" validate:"required"`
	ListenAddr string    `koanf:"listen_addr" validate:"required"`
	Timezone   string    `koanf:"timezone" validate:"required"`
	ReposDir   string    `koanf:"repos_dir" validate:"required"`
	Session    Session   `koanf:"session"`
	Algorithm  Algorithm `koanf:"algorithm"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:     "recall.db",
		ListenAddr: ":8080",
		Timezone:   "UTC",
		ReposDir:   "repos",
		Session:    Session{Limit: 200, NewCardQuota: 20, NewPerDue: 5},
	}
}

// Load merges defaults, the YAML file at path (if non-empty), environment
// variables, and the given flag set. The result is validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// RECALL_SESSION__NEW_PER_DUE=3 → session.new_per_due. Double
	// underscore separates nesting so single underscores survive in keys.
	err := k.Load(env.Provider("RECALL_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "RECALL_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment config: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("load flag config: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// AlgorithmDefaults builds the global algorithm config: the built-in
// defaults with any configured overrides applied on top.
func (c *Config) AlgorithmDefaults() (domain.AlgorithmConfig, error) {
	cfg := settings.Default()
	a := c.Algorithm

	if len(a.LearningSteps) > 0 {
		steps := make([]time.Duration, 0, len(a.LearningSteps))
		for _, s := range a.LearningSteps {
			d, err := time.ParseDuration(s)
			if err != nil {
				return domain.AlgorithmConfig{}, fmt.Errorf("invalid learning step %q: %w", s, err)
			}
			steps = append(steps, d)
		}
		cfg.LearningSteps = steps
	}
	if a.GraduatingIntervalDays != 0 {
		cfg.GraduatingIntervalDays = a.GraduatingIntervalDays
	}
	if a.EasyIntervalDays != 0 {
		cfg.EasyIntervalDays = a.EasyIntervalDays
	}
	if a.StartingEase != 0 {
		cfg.StartingEase = a.StartingEase
	}
	if a.EasyEaseBonus != 0 {
		cfg.EasyEaseBonus = a.EasyEaseBonus
	}
	if a.HardEasePenalty != 0 {
		cfg.HardEasePenalty = a.HardEasePenalty
	}
	if a.LapseEasePenalty != 0 {
		cfg.LapseEasePenalty = a.LapseEasePenalty
	}
	if a.HardIntervalFactor != 0 {
		cfg.HardIntervalFactor = a.HardIntervalFactor
	}
	if a.EasyIntervalBonus != 0 {
		cfg.EasyIntervalBonus = a.EasyIntervalBonus
	}
	if a.IntervalModifier != 0 {
		cfg.IntervalModifier = a.IntervalModifier
	}
	if a.MaxIntervalDays != 0 {
		cfg.MaxIntervalDays = a.MaxIntervalDays
	}
	if a.LapseIntervalFraction != 0 {
		cfg.LapseIntervalFraction = a.LapseIntervalFraction
	}
	if a.LeechThreshold != 0 {
		cfg.LeechThreshold = a.LeechThreshold
	}

	if err := validator.New().Struct(cfg); err != nil {
		return domain.AlgorithmConfig{}, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}
	return cfg, nil
}

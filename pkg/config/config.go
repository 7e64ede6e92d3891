// Package config loads and validates service configuration from the
// environment. Database settings live in pkg/database; everything else
// (model bindings, ingest, stream, and tournament knobs) is here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names the model gateway knows how to speak to.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// ModelRef binds one pipeline stage to a concrete provider and model.
type ModelRef struct {
	Provider string
	Model    string
}

func (m ModelRef) String() string {
	return m.Provider + "/" + m.Model
}

// LLMConfig holds the stage model bindings and gateway call behavior.
// The finals and elimination bindings fall back to the generic tournament
// binding when their env pairs are unset; the polish stage always uses the
// tournament binding.
type LLMConfig struct {
	Brainstorm            ModelRef
	Generate              ModelRef
	Tournament            ModelRef
	TournamentFinals      ModelRef
	TournamentElimination ModelRef

	// CallTimeout bounds a single provider call. MaxAttempts bounds the
	// attempt count per logical call (first try plus retries).
	CallTimeout time.Duration
	MaxAttempts int
}

// IngestConfig controls the scheduled story fetcher.
type IngestConfig struct {
	// Schedule is a cron spec, optionally prefixed with CRON_TZ=<zone>.
	Schedule              string
	Endpoint              string
	Categories            []string
	MaxStoriesPerCategory int
	MaxCallsPerCategory   int
}

// StreamConfig controls the change-event dispatchers.
type StreamConfig struct {
	BatchSize          int
	PollInterval       time.Duration
	PollIntervalJitter time.Duration
}

// TournamentConfig controls the ranking engine.
type TournamentConfig struct {
	// FinalsCutoff is the survivor cohort size written back after a run.
	FinalsCutoff int
	// Verbose asks the judge for reasoning text after the ranking line.
	Verbose bool
	// RunBudget is the wall-clock limit for one whole tournament run.
	RunBudget time.Duration
}

// Config is the root service configuration.
type Config struct {
	LLM        LLMConfig
	Ingest     IngestConfig
	Stream     StreamConfig
	Tournament TournamentConfig
}

// Load reads configuration from the environment on top of the defaults and
// validates the result.
func Load() (*Config, error) {
	cfg := Default()

	cfg.LLM.Brainstorm = loadModelRef("BRAINSTORM", cfg.LLM.Brainstorm)
	cfg.LLM.Generate = loadModelRef("GENERATE", cfg.LLM.Generate)
	cfg.LLM.Tournament = loadModelRef("TOURNAMENT", cfg.LLM.Tournament)
	cfg.LLM.TournamentFinals = loadModelRef("TOURNAMENT_FINALS", cfg.LLM.Tournament)
	cfg.LLM.TournamentElimination = loadModelRef("TOURNAMENT_ELIMINATION", cfg.LLM.Tournament)

	var err error
	if cfg.LLM.CallTimeout, err = durationEnv("LLM_CALL_TIMEOUT", cfg.LLM.CallTimeout); err != nil {
		return nil, err
	}
	if cfg.LLM.MaxAttempts, err = intEnv("LLM_MAX_ATTEMPTS", cfg.LLM.MaxAttempts); err != nil {
		return nil, err
	}

	cfg.Ingest.Schedule = envOrDefault("INGEST_SCHEDULE", cfg.Ingest.Schedule)
	cfg.Ingest.Endpoint = envOrDefault("NEWSDATA_ENDPOINT", cfg.Ingest.Endpoint)
	if raw := os.Getenv("INGEST_CATEGORIES"); raw != "" {
		cfg.Ingest.Categories = splitList(raw)
	}
	if cfg.Ingest.MaxStoriesPerCategory, err = intEnv("MAX_STORIES_PER_CATEGORY", cfg.Ingest.MaxStoriesPerCategory); err != nil {
		return nil, err
	}
	if cfg.Ingest.MaxCallsPerCategory, err = intEnv("MAX_API_CALLS", cfg.Ingest.MaxCallsPerCategory); err != nil {
		return nil, err
	}

	if cfg.Stream.BatchSize, err = intEnv("STREAM_BATCH_SIZE", cfg.Stream.BatchSize); err != nil {
		return nil, err
	}
	if cfg.Stream.PollInterval, err = durationEnv("STREAM_POLL_INTERVAL", cfg.Stream.PollInterval); err != nil {
		return nil, err
	}

	if cfg.Tournament.FinalsCutoff, err = intEnv("TOURNAMENT_FINALS_CUTOFF", cfg.Tournament.FinalsCutoff); err != nil {
		return nil, err
	}
	if cfg.Tournament.Verbose, err = boolEnv("TOURNAMENT_VERBOSE", cfg.Tournament.Verbose); err != nil {
		return nil, err
	}
	if cfg.Tournament.RunBudget, err = durationEnv("TOURNAMENT_RUN_BUDGET", cfg.Tournament.RunBudget); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. Load calls this; tests that construct
// a Config by hand can call it directly.
func (c *Config) Validate() error {
	bindings := []struct {
		name string
		ref  ModelRef
	}{
		{"brainstorm", c.LLM.Brainstorm},
		{"generate", c.LLM.Generate},
		{"tournament", c.LLM.Tournament},
		{"tournament_finals", c.LLM.TournamentFinals},
		{"tournament_elimination", c.LLM.TournamentElimination},
	}
	for _, b := range bindings {
		switch b.ref.Provider {
		case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
		default:
			return NewValidationError("llm", b.name, "provider",
				fmt.Errorf("%w: %q", ErrUnknownProvider, b.ref.Provider))
		}
		if b.ref.Model == "" {
			return NewValidationError("llm", b.name, "model", ErrMissingRequiredField)
		}
	}

	if c.LLM.MaxAttempts < 1 {
		return NewValidationError("llm", "gateway", "max_attempts", ErrInvalidValue)
	}
	if c.LLM.CallTimeout <= 0 {
		return NewValidationError("llm", "gateway", "call_timeout", ErrInvalidValue)
	}

	if len(c.Ingest.Categories) == 0 {
		return NewValidationError("ingest", "fetcher", "categories", ErrMissingRequiredField)
	}
	if c.Ingest.MaxStoriesPerCategory < 1 {
		return NewValidationError("ingest", "fetcher", "max_stories_per_category", ErrInvalidValue)
	}
	if c.Ingest.MaxCallsPerCategory < 1 {
		return NewValidationError("ingest", "fetcher", "max_api_calls", ErrInvalidValue)
	}

	if c.Stream.BatchSize < 1 {
		return NewValidationError("stream", "dispatcher", "batch_size", ErrInvalidValue)
	}
	if c.Stream.PollInterval <= 0 {
		return NewValidationError("stream", "dispatcher", "poll_interval", ErrInvalidValue)
	}

	if c.Tournament.FinalsCutoff < 1 {
		return NewValidationError("tournament", "engine", "finals_cutoff", ErrInvalidValue)
	}
	if c.Tournament.RunBudget <= 0 {
		return NewValidationError("tournament", "engine", "run_budget", ErrInvalidValue)
	}
	return nil
}

// loadModelRef reads {key}_PROVIDER and {key}_MODEL, falling back to def for
// whichever is unset.
func loadModelRef(key string, def ModelRef) ModelRef {
	return ModelRef{
		Provider: envOrDefault(key+"_PROVIDER", def.Provider),
		Model:    envOrDefault(key+"_MODEL", def.Model),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

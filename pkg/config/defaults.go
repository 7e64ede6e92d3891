package config

import "time"

// Default returns the built-in configuration. Every value here can be
// overridden through the environment; see Load.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Brainstorm:  ModelRef{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
			Generate:    ModelRef{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
			Tournament:  ModelRef{Provider: ProviderGoogle, Model: "gemini-2.5-flash-lite"},
			CallTimeout: 30 * time.Second,
			MaxAttempts: 4,
		},
		Ingest: IngestConfig{
			// Four editions a day, scheduled in Pacific time.
			Schedule: "CRON_TZ=America/Los_Angeles 0 5,11,15,20 * * *",
			Endpoint: "https://newsdata.io/api/1/news",
			Categories: []string{
				"business",
				"entertainment",
				"sports",
				"technology",
				"politics",
			},
			MaxStoriesPerCategory: 5,
			MaxCallsPerCategory:   3,
		},
		Stream: StreamConfig{
			BatchSize:          10,
			PollInterval:       5 * time.Second,
			PollIntervalJitter: 1 * time.Second,
		},
		Tournament: TournamentConfig{
			FinalsCutoff: 64,
			Verbose:      false,
			RunBudget:    10 * time.Minute,
		},
	}
}

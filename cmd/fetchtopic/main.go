// fetchtopic pulls stories matching a search query into the pipeline,
// outside the regular ingest schedule. Useful when a breaking topic
// deserves same-day coverage.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/satyrpress/satyr/pkg/config"
	"github.com/satyrpress/satyr/pkg/database"
	"github.com/satyrpress/satyr/pkg/ingest"
	"github.com/satyrpress/satyr/pkg/store"
)

func main() {
	var (
		maxStories int
		noPriority bool
	)

	cmd := &cobra.Command{
		Use:   "fetchtopic \"<query>\"",
		Short: "Fetch news stories matching a query into the pipeline",
		Long: `Fetches stories matching the query from the news feed and saves them,
tagged "manual:<query>". Saved stories flow through headline generation
and ranking like any scheduled fetch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], maxStories, !noPriority)
		},
		SilenceUsage: true,
	}
	cmd.Flags().IntVar(&maxStories, "max", 10, "maximum stories to save")
	cmd.Flags().BoolVar(&noPriority, "no-priority", false, "skip the top-domain priority filter")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, query string, maxStories int, usePriority bool) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbClient.Close()

	feed, err := ingest.NewClient(cfg.Ingest.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create newsdata client: %w", err)
	}
	fetcher := ingest.NewFetcher(feed, store.New(dbClient.Pool()), cfg.Ingest)

	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	summary, err := fetcher.FetchTopic(fetchCtx, query, maxStories, usePriority)
	if err != nil {
		return fmt.Errorf("topic fetch failed after saving %d: %w", summary.Saved, err)
	}

	fmt.Printf("Saved %d of %d stories for %q\n", summary.Saved, summary.Processed, query)
	return nil
}

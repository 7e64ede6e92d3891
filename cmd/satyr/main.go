// Satyr pipeline server — ingests real news on a schedule, generates and
// ranks satirical headlines through the change-stream consumers, and serves
// reader editions over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/satyrpress/satyr/pkg/config"
	"github.com/satyrpress/satyr/pkg/database"
	"github.com/satyrpress/satyr/pkg/ingest"
	"github.com/satyrpress/satyr/pkg/llm"
	"github.com/satyrpress/satyr/pkg/models"
	"github.com/satyrpress/satyr/pkg/reader"
	"github.com/satyrpress/satyr/pkg/store"
	"github.com/satyrpress/satyr/pkg/stream"
	"github.com/satyrpress/satyr/pkg/subvert"
	"github.com/satyrpress/satyr/pkg/tournament"
	"github.com/satyrpress/satyr/pkg/version"
	"github.com/satyrpress/satyr/pkg/words"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Load .env if present; a containerized deployment sets real env vars.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	slog.Info("Starting satyr", "version", version.Full())
	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Database (migrations run inside NewClient)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database")

	st := store.New(dbClient.Pool())
	bank := words.NewBank(st)
	gateway := llm.New(cfg.LLM)

	// 3. Change-stream consumers: stories → subvert, headlines → tournament
	storiesListener := stream.NewListener(dbConfig.DSN(), models.StreamStories)
	if err := storiesListener.Start(ctx); err != nil {
		slog.Error("Failed to start stories listener", "error", err)
		os.Exit(1)
	}
	defer storiesListener.Stop(ctx)

	headlinesListener := stream.NewListener(dbConfig.DSN(), models.StreamHeadlines)
	if err := headlinesListener.Start(ctx); err != nil {
		slog.Error("Failed to start headlines listener", "error", err)
		os.Exit(1)
	}
	defer headlinesListener.Stop(ctx)

	worker := subvert.NewWorker(gateway, st, bank)
	storiesDispatcher := stream.NewDispatcher(
		models.StreamStories, st, worker, storiesListener, dbClient.Pool(), cfg.Stream)
	storiesDispatcher.Start(ctx)
	defer storiesDispatcher.Stop()

	engine := tournament.NewEngine(st, gateway, cfg.Tournament)
	headlinesDispatcher := stream.NewDispatcher(
		models.StreamHeadlines, st, engine, headlinesListener, dbClient.Pool(), cfg.Stream)
	headlinesDispatcher.Start(ctx)
	defer headlinesDispatcher.Stop()
	slog.Info("Change-stream consumers started")

	// 4. Scheduled ingest
	feed, err := ingest.NewClient(cfg.Ingest.Endpoint)
	if err != nil {
		slog.Error("Failed to create newsdata client", "error", err)
		os.Exit(1)
	}
	fetcher := ingest.NewFetcher(feed, st, cfg.Ingest)
	scheduler := ingest.NewScheduler(fetcher)
	if err := scheduler.Start(ctx, cfg.Ingest.Schedule); err != nil {
		slog.Error("Failed to start ingest scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// 5. Reader HTTP server
	selector := reader.NewSelector(st, bank)
	apiServer := reader.NewServer(selector, dbClient.Pool())

	addr := net.JoinHostPort(getEnv("SERVER_HOST", ""), getEnv("SERVER_PORT", "8080"))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Reader API listening", "addr", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 6. Run until signalled
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	slog.Info("Satyr stopped")
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Scheduler runs fetch runs on the configured cron spec.
type Scheduler struct {
	fetcher *Fetcher
	cron    *cron.Cron
	log     *slog.Logger
}

// NewScheduler creates a scheduler around a fetcher.
func NewScheduler(fetcher *Fetcher) *Scheduler {
	return &Scheduler{
		fetcher: fetcher,
		cron:    cron.New(),
		log:     slog.With("component", "ingest-scheduler"),
	}
}

// Start registers the schedule and begins running. The spec may carry a
// CRON_TZ= prefix; robfig/cron resolves it.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		// Correlation id for tying a run's log lines together.
		log := s.log.With("run_id", uuid.NewString())
		log.Info("Fetch run starting")

		summary, err := s.fetcher.FetchRun(runCtx)
		if err != nil {
			log.Error("Scheduled fetch run failed", "error", err, "partial", summary.String())
			return
		}
		log.Info("Scheduled fetch run finished", "summary", summary.String())
	})
	if err != nil {
		return fmt.Errorf("invalid ingest schedule %q: %w", spec, err)
	}

	s.cron.Start()
	s.log.Info("Ingest schedule registered", "spec", spec)
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

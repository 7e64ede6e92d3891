// Package tournament ranks a day's headline candidates against one
// another. Rather than re-ranking the whole growing corpus on every
// trigger, each run ranks only the newly arrived candidates together with
// the previous run's top-K survivors, then persists a fresh survivor
// cohort. A final-run polish pass punches up the top finalists, and a
// cross-day tournament ranks today's best against the two prior days.
package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/satyrpress/satyr/pkg/config"
	"github.com/satyrpress/satyr/pkg/llm"
	"github.com/satyrpress/satyr/pkg/models"
	"github.com/satyrpress/satyr/pkg/prompt"
	"github.com/satyrpress/satyr/pkg/store"
)

const (
	// polishTop is how many finalists the polish pass touches.
	polishTop = 16
	// crossDayToday and crossDayPrior size the cross-day pool: today's
	// top-64 plus the top-16 of each of the two prior days.
	crossDayToday = 64
	crossDayPrior = 16
	// finalBatchThreshold makes a run final once the day has seen this
	// many batches, regardless of the hour.
	finalBatchThreshold = 4
	// finalHour makes any run final from this editorial-timezone hour on.
	finalHour = 21
)

// Gateway is the model gateway surface the engine judges with.
type Gateway interface {
	Call(ctx context.Context, stage llm.Stage, req llm.Request) (llm.Completion, error)
}

// Store is the headline store surface the engine reads and writes.
type Store interface {
	ListHeadlinesByDay(ctx context.Context, day string) ([]models.Headline, error)
	ListRankedHeadlines(ctx context.Context, day string, limit int) ([]models.Headline, error)
	ApplyTournament(ctx context.Context, day string, batch int, survivors []store.RankUpdate, eliminated []string) error
	SetPolished(ctx context.Context, day, headlineID, text string) error
	SetCrossDayRanks(ctx context.Context, day string, updates []store.CrossDayRankUpdate) error
}

// Engine is the headline-stream consumer that runs tournaments.
type Engine struct {
	store   Store
	gateway Gateway
	cfg     config.TournamentConfig
	log     *slog.Logger
	now     func() time.Time
	rng     *rand.Rand
}

// NewEngine wires a tournament engine.
func NewEngine(st Store, gateway Gateway, cfg config.TournamentConfig) *Engine {
	return &Engine{
		store:   st,
		gateway: gateway,
		cfg:     cfg,
		log:     slog.With("component", "tournament"),
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Name identifies the consumer in dispatcher logs.
func (e *Engine) Name() string { return "tournament" }

// HandleBatch runs one tournament per distinct day present in the batch.
// Run failures are logged, not returned: the engine's own no-op guard
// means any headlines a broken run left unranked are still new, so the
// next trigger retries them, while the prior survivor cohort stays
// authoritative meanwhile.
func (e *Engine) HandleBatch(ctx context.Context, events []models.ChangeEvent) error {
	days := make(map[string]bool)
	for _, event := range events {
		if event.EventName == models.EventRemove {
			continue
		}
		days[event.YearMonthDay] = true
	}

	for day := range days {
		if err := e.runDay(ctx, day); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Error("Tournament run failed", "day", day, "error", err)
		}
	}
	return nil
}

// runDay executes one progressive tournament run for a day.
func (e *Engine) runDay(ctx context.Context, day string) error {
	headlines, err := e.store.ListHeadlinesByDay(ctx, day)
	if err != nil {
		return err
	}

	var fresh, survivors []models.Headline
	maxBatch := 0
	for _, h := range headlines {
		if !h.InTournament() {
			fresh = append(fresh, h)
			continue
		}
		if *h.TournamentBatch > maxBatch {
			maxBatch = *h.TournamentBatch
		}
		if h.IsSurvivor() {
			survivors = append(survivors, h)
		}
	}

	// No new candidates: nothing to rank. This also breaks the feedback
	// loop from the engine's own MODIFY events.
	if len(fresh) == 0 {
		e.log.Debug("No new headlines, skipping run", "day", day)
		return nil
	}

	batch := maxBatch + 1
	pool := append(fresh, survivors...)
	e.log.Info("Tournament run starting",
		"day", day, "batch", batch, "new", len(fresh), "survivors", len(survivors))

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.RunBudget)
	defer cancel()

	ordered, err := e.rankPool(runCtx, pool)
	if err != nil {
		return err
	}
	if len(ordered) != len(pool) {
		return fmt.Errorf("ranking lost candidates: %d in, %d out", len(pool), len(ordered))
	}

	cutoff := min(e.cfg.FinalsCutoff, len(ordered))
	rankUpdates := make([]store.RankUpdate, 0, cutoff)
	for i, h := range ordered[:cutoff] {
		rankUpdates = append(rankUpdates, store.RankUpdate{HeadlineID: h.HeadlineID, Rank: i + 1})
	}
	eliminated := make([]string, 0, len(ordered)-cutoff)
	for _, h := range ordered[cutoff:] {
		eliminated = append(eliminated, h.HeadlineID)
	}

	if err := e.store.ApplyTournament(runCtx, day, batch, rankUpdates, eliminated); err != nil {
		return err
	}
	e.log.Info("Tournament run complete",
		"day", day, "batch", batch, "survivors", len(rankUpdates), "eliminated", len(eliminated))

	if e.isFinalRun(batch) {
		e.polish(runCtx, day, ordered[:min(polishTop, cutoff)])
	}

	return e.crossDay(runCtx, day)
}

// isFinalRun reports whether this run should polish finalists: late in
// the day's batch sequence or late in the editorial evening.
func (e *Engine) isFinalRun(batch int) bool {
	return batch >= finalBatchThreshold ||
		e.now().In(models.EditorialLocation()).Hour() >= finalHour
}

// polish punches up the top finalists, once each ever. Per-headline
// failures are logged and skipped; polish never blocks the run outcome.
func (e *Engine) polish(ctx context.Context, day string, finalists []models.Headline) {
	polished := 0
	for _, h := range finalists {
		if h.Polished() {
			continue
		}

		completion, err := e.gateway.Call(ctx, llm.StagePolish, llm.Request{
			System:      prompt.PolishSystem,
			Prompt:      prompt.BuildPolish(h),
			MaxTokens:   128,
			Temperature: 0.9,
		})
		if err != nil {
			e.log.Warn("Polish call failed", "day", day, "headline", h.HeadlineID, "error", err)
			continue
		}

		improved := prompt.ParsePolish(completion.Text)
		if improved == "" || improved == h.Headline {
			continue
		}
		if err := e.store.SetPolished(ctx, day, h.HeadlineID, improved); err != nil {
			e.log.Warn("Failed to persist polish", "day", day, "headline", h.HeadlineID, "error", err)
			continue
		}
		polished++
	}
	if polished > 0 {
		e.log.Info("Polish pass complete", "day", day, "polished", polished)
	}
}

// crossDay ranks today's best against the two prior days' best and writes
// CrossDayRank across the pool. Additive: daily Rank is untouched.
func (e *Engine) crossDay(ctx context.Context, day string) error {
	pool, err := e.store.ListRankedHeadlines(ctx, day, crossDayToday)
	if err != nil {
		return err
	}
	for _, offset := range []int{-1, -2} {
		prior, err := models.DayKeyOffset(day, offset)
		if err != nil {
			return err
		}
		priorTop, err := e.store.ListRankedHeadlines(ctx, prior, crossDayPrior)
		if err != nil {
			return err
		}
		pool = append(pool, priorTop...)
	}
	if len(pool) == 0 {
		return nil
	}

	ordered, err := e.rankPool(ctx, pool)
	if err != nil {
		return fmt.Errorf("cross-day ranking failed: %w", err)
	}

	updates := make([]store.CrossDayRankUpdate, 0, len(ordered))
	for i, h := range ordered {
		updates = append(updates, store.CrossDayRankUpdate{
			Day:        h.YearMonthDay,
			HeadlineID: h.HeadlineID,
			Rank:       i + 1,
		})
	}
	if err := e.store.SetCrossDayRanks(ctx, day, updates); err != nil {
		return err
	}
	e.log.Info("Cross-day tournament complete", "day", day, "pool", len(ordered))
	return nil
}

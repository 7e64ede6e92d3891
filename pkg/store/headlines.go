package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/satyrpress/satyr/pkg/models"
)

const headlineColumns = `year_month_day, headline_id, headline, original_headline,
	original_subverted, angle, angle_setup, story_id, create_time,
	rank, cross_day_rank, tournament_batch, survived`

// RankUpdate assigns a survivor its place in the day's order.
type RankUpdate struct {
	HeadlineID string
	Rank       int
}

// CrossDayRankUpdate assigns a cross-day place to a headline that may live
// under any day key.
type CrossDayRankUpdate struct {
	Day        string
	HeadlineID string
	Rank       int
}

// PutHeadlines inserts a batch of headlines atomically, one change event
// each. The subvert worker calls this once per story so a story's variants
// land all-or-nothing.
func (s *Store) PutHeadlines(ctx context.Context, headlines []models.Headline) error {
	if len(headlines) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, h := range headlines {
		_, err := tx.Exec(ctx, `
			INSERT INTO headlines (`+headlineColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			h.YearMonthDay, h.HeadlineID, h.Headline, h.OriginalHeadline,
			h.OriginalSubverted, h.Angle, h.AngleSetup, h.StoryID, h.CreateTime,
			h.Rank, h.CrossDayRank, h.TournamentBatch, h.Survived)
		if err != nil {
			return fmt.Errorf("failed to insert headline %s: %w", h.HeadlineID, err)
		}
		if err := appendEvent(ctx, tx, models.StreamHeadlines, models.EventInsert,
			h.YearMonthDay, h.HeadlineID, h); err != nil {
			return err
		}
	}
	if err := notifyStream(ctx, tx, models.StreamHeadlines, headlines[0].YearMonthDay, len(headlines)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit headlines: %w", err)
	}
	return nil
}

// HeadlinesExistForStory reports whether a story already has variants for
// the day. The subvert worker's idempotency guard.
func (s *Store) HeadlinesExistForStory(ctx context.Context, day, storyID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM headlines WHERE year_month_day = $1 AND story_id = $2
		)`,
		day, storyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check headlines for story %s/%s: %w", day, storyID, err)
	}
	return exists, nil
}

// ListHeadlinesByDay returns every headline for a day in creation order.
func (s *Store) ListHeadlinesByDay(ctx context.Context, day string) ([]models.Headline, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+headlineColumns+`
		FROM headlines
		WHERE year_month_day = $1
		ORDER BY create_time, headline_id`,
		day)
	if err != nil {
		return nil, fmt.Errorf("failed to query headlines for %s: %w", day, err)
	}
	defer rows.Close()
	return collectHeadlines(rows, day)
}

// ListRankedHeadlines returns the day's ranked survivors, best first, up to
// limit. The cross-day tournament uses this to pull prior-day finalists.
func (s *Store) ListRankedHeadlines(ctx context.Context, day string, limit int) ([]models.Headline, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+headlineColumns+`
		FROM headlines
		WHERE year_month_day = $1 AND survived = true AND rank IS NOT NULL
		ORDER BY rank
		LIMIT $2`,
		day, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked headlines for %s: %w", day, err)
	}
	defer rows.Close()
	return collectHeadlines(rows, day)
}

// ApplyTournament persists one run's outcome atomically: survivors get their
// rank, everyone touched gets the batch number, and non-survivors lose any
// rank from an earlier run. Each update emits a change event; the run that
// those events later trigger sees no new headlines and stops the loop.
func (s *Store) ApplyTournament(ctx context.Context, day string, batch int, survivors []RankUpdate, eliminated []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, ru := range survivors {
		row := tx.QueryRow(ctx, `
			UPDATE headlines
			SET rank = $1, tournament_batch = $2, survived = true
			WHERE year_month_day = $3 AND headline_id = $4
			RETURNING `+headlineColumns,
			ru.Rank, batch, day, ru.HeadlineID)
		h, err := scanHeadline(row)
		if err != nil {
			return fmt.Errorf("failed to rank headline %s: %w", ru.HeadlineID, err)
		}
		if err := appendEvent(ctx, tx, models.StreamHeadlines, models.EventModify,
			day, h.HeadlineID, h); err != nil {
			return err
		}
	}

	for _, id := range eliminated {
		row := tx.QueryRow(ctx, `
			UPDATE headlines
			SET rank = NULL, tournament_batch = $1, survived = false
			WHERE year_month_day = $2 AND headline_id = $3
			RETURNING `+headlineColumns,
			batch, day, id)
		h, err := scanHeadline(row)
		if err != nil {
			return fmt.Errorf("failed to eliminate headline %s: %w", id, err)
		}
		if err := appendEvent(ctx, tx, models.StreamHeadlines, models.EventModify,
			day, h.HeadlineID, h); err != nil {
			return err
		}
	}

	if err := notifyStream(ctx, tx, models.StreamHeadlines, day, len(survivors)+len(eliminated)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tournament outcome: %w", err)
	}
	return nil
}

// SetPolished swaps in the polished text, preserving what the subvert stage
// originally wrote. A headline is only ever polished once.
func (s *Store) SetPolished(ctx context.Context, day, headlineID, text string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Both right-hand sides read the pre-update row, so original_subverted
	// captures the text being replaced.
	row := tx.QueryRow(ctx, `
		UPDATE headlines
		SET original_subverted = headline, headline = $1
		WHERE year_month_day = $2 AND headline_id = $3 AND original_subverted IS NULL
		RETURNING `+headlineColumns,
		text, day, headlineID)
	h, err := scanHeadline(row)
	if err != nil {
		return fmt.Errorf("failed to polish headline %s: %w", headlineID, err)
	}

	if err := appendEvent(ctx, tx, models.StreamHeadlines, models.EventModify,
		day, h.HeadlineID, h); err != nil {
		return err
	}
	if err := notifyStream(ctx, tx, models.StreamHeadlines, day, 1); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit polish: %w", err)
	}
	return nil
}

// SetCrossDayRanks persists a cross-day tournament outcome across the days
// it spans, atomically.
func (s *Store) SetCrossDayRanks(ctx context.Context, day string, updates []CrossDayRankUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, u := range updates {
		row := tx.QueryRow(ctx, `
			UPDATE headlines
			SET cross_day_rank = $1
			WHERE year_month_day = $2 AND headline_id = $3
			RETURNING `+headlineColumns,
			u.Rank, u.Day, u.HeadlineID)
		h, err := scanHeadline(row)
		if err != nil {
			return fmt.Errorf("failed to set cross-day rank for %s/%s: %w", u.Day, u.HeadlineID, err)
		}
		if err := appendEvent(ctx, tx, models.StreamHeadlines, models.EventModify,
			u.Day, h.HeadlineID, h); err != nil {
			return err
		}
	}

	if err := notifyStream(ctx, tx, models.StreamHeadlines, day, len(updates)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cross-day ranks: %w", err)
	}
	return nil
}

func collectHeadlines(rows pgx.Rows, day string) ([]models.Headline, error) {
	var headlines []models.Headline
	for rows.Next() {
		h, err := scanHeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan headline: %w", err)
		}
		headlines = append(headlines, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read headlines for %s: %w", day, err)
	}
	return headlines, nil
}

func scanHeadline(row pgx.Row) (models.Headline, error) {
	var h models.Headline
	err := row.Scan(&h.YearMonthDay, &h.HeadlineID, &h.Headline, &h.OriginalHeadline,
		&h.OriginalSubverted, &h.Angle, &h.AngleSetup, &h.StoryID, &h.CreateTime,
		&h.Rank, &h.CrossDayRank, &h.TournamentBatch, &h.Survived)
	return h, err
}

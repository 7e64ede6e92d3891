package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/satyrpress/satyr/pkg/models"
)

const storyColumns = `year_month_day, story_id, title, description, published_at,
	author, content, url, image_url, video_url, language, country,
	keywords, category, fetch_category, source, retrieved_time`

// PutStory inserts a story unless the day already has one with the same
// title. Returns true when the row was written; the matching change event is
// committed atomically with it.
func (s *Store) PutStory(ctx context.Context, story models.Story) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted string
	err = tx.QueryRow(ctx, `
		INSERT INTO stories (`+storyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT DO NOTHING
		RETURNING story_id`,
		story.YearMonthDay, story.StoryID, story.Title, story.Description, story.PublishedAt,
		story.Author, story.Content, story.URL, story.ImageURL, story.VideoURL,
		story.Language, story.Country, story.Keywords, story.Category,
		story.FetchCategory, story.Source, story.RetrievedTime,
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		// Same title already saved for this day.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert story: %w", err)
	}

	if err := appendEvent(ctx, tx, models.StreamStories, models.EventInsert,
		story.YearMonthDay, story.StoryID, story); err != nil {
		return false, err
	}
	if err := notifyStream(ctx, tx, models.StreamStories, story.YearMonthDay, 1); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit story: %w", err)
	}
	return true, nil
}

// ListStoriesByDay returns every story saved for a day, newest first. The
// reader joins selected headlines against it one day at a time.
func (s *Store) ListStoriesByDay(ctx context.Context, day string) ([]models.Story, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+storyColumns+`
		FROM stories
		WHERE year_month_day = $1
		ORDER BY retrieved_time DESC, story_id`,
		day)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories for %s: %w", day, err)
	}
	defer rows.Close()

	var stories []models.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stories for %s: %w", day, err)
	}
	return stories, nil
}

func scanStory(row pgx.Row) (models.Story, error) {
	var st models.Story
	err := row.Scan(&st.YearMonthDay, &st.StoryID, &st.Title, &st.Description, &st.PublishedAt,
		&st.Author, &st.Content, &st.URL, &st.ImageURL, &st.VideoURL,
		&st.Language, &st.Country, &st.Keywords, &st.Category,
		&st.FetchCategory, &st.Source, &st.RetrievedTime)
	return st, err
}

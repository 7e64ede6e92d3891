package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/satyrpress/satyr/pkg/models"
)

// appendEvent writes one change event inside the caller's transaction. The
// full new image rides in the outbox row; the LISTEN/NOTIFY payload is only
// a wake signal (NOTIFY payloads are capped at 8KB, images are not).
func appendEvent(ctx context.Context, tx pgx.Tx, stream, eventName, day, recordID string, image any) error {
	raw, err := json.Marshal(image)
	if err != nil {
		return fmt.Errorf("failed to encode %s image: %w", stream, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO change_events (stream, event_name, year_month_day, record_id, new_image)
		VALUES ($1, $2, $3, $4, $5)`,
		stream, eventName, day, recordID, raw)
	if err != nil {
		return fmt.Errorf("failed to append change event: %w", err)
	}
	return nil
}

// notifyStream wakes the stream's dispatcher. Called once per transaction,
// after the events are appended, so the notification is delivered only on
// commit.
func notifyStream(ctx context.Context, tx pgx.Tx, stream, day string, count int) error {
	payload, err := json.Marshal(map[string]any{"day": day, "count": count})
	if err != nil {
		return fmt.Errorf("failed to encode notify payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, stream, string(payload)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", stream, err)
	}
	return nil
}

// PendingEvents returns up to limit unprocessed events for a stream in
// insertion order. The dispatcher holding the stream lease is the only
// expected caller.
func (s *Store) PendingEvents(ctx context.Context, stream string, limit int) ([]models.ChangeEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, stream, event_name, year_month_day, record_id, new_image, created_at
		FROM change_events
		WHERE stream = $1 AND processed_at IS NULL
		ORDER BY id
		LIMIT $2`,
		stream, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []models.ChangeEvent
	for rows.Next() {
		var ev models.ChangeEvent
		if err := rows.Scan(&ev.ID, &ev.Stream, &ev.EventName, &ev.YearMonthDay,
			&ev.RecordID, &ev.NewImage, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending events: %w", err)
	}
	return events, nil
}

// MarkEventsProcessed stamps the given events as handled. Called only after
// the consumer finished the batch, so a crash before this point redelivers.
func (s *Store) MarkEventsProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE change_events SET processed_at = now()
		WHERE id = ANY($1) AND processed_at IS NULL`,
		ids)
	if err != nil {
		return fmt.Errorf("failed to mark events processed: %w", err)
	}
	return nil
}

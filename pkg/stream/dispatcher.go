package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satyrpress/satyr/pkg/config"
	"github.com/satyrpress/satyr/pkg/models"
)

// Consumer handles one claimed batch of change events. Returning an error
// leaves the whole batch unprocessed; it will be redelivered, so consumers
// must tolerate seeing an event more than once.
type Consumer interface {
	Name() string
	HandleBatch(ctx context.Context, events []models.ChangeEvent) error
}

// EventSource is the outbox surface the dispatcher drives.
type EventSource interface {
	PendingEvents(ctx context.Context, stream string, limit int) ([]models.ChangeEvent, error)
	MarkEventsProcessed(ctx context.Context, ids []int64) error
}

// Dispatcher delivers one stream's pending events to its consumer in
// insertion order. A PostgreSQL advisory lock held for the loop's lifetime
// makes it the stream's single writer across every running instance; events
// are marked processed only after the consumer succeeds, which gives
// at-least-once delivery through crashes.
type Dispatcher struct {
	stream   string
	source   EventSource
	consumer Consumer
	listener *Listener // optional; polling covers delivery without it
	pool     *pgxpool.Pool
	cfg      config.StreamConfig

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDispatcher wires a stream to its consumer. listener may be nil, in
// which case delivery is poll-only.
func NewDispatcher(stream string, source EventSource, consumer Consumer, listener *Listener, pool *pgxpool.Pool, cfg config.StreamConfig) *Dispatcher {
	return &Dispatcher{
		stream:   stream,
		source:   source,
		consumer: consumer,
		listener: listener,
		pool:     pool,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the dispatch loop in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

// Stop signals the loop to exit and waits for it to finish. Safe to call
// more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	log := slog.With("stream", d.stream, "consumer", d.consumer.Name())

	lease := d.acquireLease(ctx, log)
	if lease == nil {
		return // stopped while standing by
	}
	defer lease.release()

	log.Info("Dispatcher started")

	for {
		select {
		case <-d.stopCh:
			log.Info("Dispatcher shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, dispatcher shutting down")
			return
		default:
			n, err := d.dispatchPending(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error("Dispatch failed, batch stays pending", "error", err)
				d.sleep(time.Second)
				continue
			}
			if n > 0 {
				continue // drain before waiting again
			}
			d.waitForWork()
		}
	}
}

// dispatchPending claims up to one batch, runs the consumer, and marks the
// batch processed. Returns how many events were handled.
func (d *Dispatcher) dispatchPending(ctx context.Context) (int, error) {
	events, err := d.source.PendingEvents(ctx, d.stream, d.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to poll %s events: %w", d.stream, err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := d.consumer.HandleBatch(ctx, events); err != nil {
		return 0, fmt.Errorf("consumer rejected batch of %d: %w", len(events), err)
	}

	ids := make([]int64, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	if err := d.source.MarkEventsProcessed(ctx, ids); err != nil {
		return 0, err
	}
	return len(events), nil
}

// waitForWork blocks until a notification, the poll interval, or shutdown.
func (d *Dispatcher) waitForWork() {
	var wake <-chan struct{}
	if d.listener != nil {
		wake = d.listener.Wake()
	}
	select {
	case <-d.stopCh:
	case <-wake:
	case <-time.After(d.pollInterval()):
	}
}

// sleep waits for the given duration or until stop is signalled.
func (d *Dispatcher) sleep(dur time.Duration) {
	select {
	case <-d.stopCh:
	case <-time.After(dur):
	}
}

// pollInterval returns the poll duration with jitter.
func (d *Dispatcher) pollInterval() time.Duration {
	base := d.cfg.PollInterval
	jitter := d.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// lease is a session-scoped advisory lock held on a dedicated pooled
// connection. It outlives any single transaction, so it survives the long
// gaps between claims while the consumer works.
type lease struct {
	conn *pgxpool.Conn
	key  string
}

// acquireLease blocks until this dispatcher holds the stream's advisory
// lock, standing by while another instance holds it. Returns nil if stopped
// or cancelled first.
func (d *Dispatcher) acquireLease(ctx context.Context, log *slog.Logger) *lease {
	key := "stream:" + d.stream
	standby := false

	for {
		select {
		case <-d.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		conn, err := d.pool.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("Failed to acquire connection for stream lease", "error", err)
			d.sleep(time.Second)
			continue
		}

		var locked bool
		err = conn.QueryRow(ctx,
			`SELECT pg_try_advisory_lock(hashtext($1)::bigint)`, key).Scan(&locked)
		if err != nil {
			conn.Release()
			if ctx.Err() != nil {
				return nil
			}
			log.Error("Failed to take stream lease", "error", err)
			d.sleep(time.Second)
			continue
		}
		if locked {
			return &lease{conn: conn, key: key}
		}

		conn.Release()
		if !standby {
			log.Info("Stream lease held elsewhere, standing by")
			standby = true
		}
		d.sleep(d.pollInterval())
	}
}

// release frees the advisory lock and returns the connection to the pool.
func (l *lease) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = l.conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1)::bigint)`, l.key)
	l.conn.Release()
}

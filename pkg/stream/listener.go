// Package stream turns the transactional outbox into ordered, at-least-once
// change-event delivery. A Listener holds a dedicated LISTEN connection per
// stream; a Dispatcher claims pending events under a per-stream lease and
// hands them to a Consumer.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Listener holds a dedicated PostgreSQL connection LISTENing on one channel
// and nudges a wake channel whenever a notification arrives. Notifications
// are wake signals only; the dispatcher reads actual events from the outbox
// table, so a dropped notification costs latency, never data.
type Listener struct {
	connString string
	channel    string
	wake       chan struct{}

	connMu sync.Mutex
	conn   *pgx.Conn // sole user is the receive loop

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewListener creates a listener for one notification channel.
func NewListener(connString, channel string) *Listener {
	return &Listener{
		connString: connString,
		channel:    channel,
		wake:       make(chan struct{}, 1),
	}
}

// Wake returns the channel nudged on every notification.
func (l *Listener) Wake() <-chan struct{} {
	return l.wake
}

// Start establishes the dedicated LISTEN connection and begins receiving.
func (l *Listener) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("failed to connect for LISTEN: %w", err)
	}

	sanitized := pgx.Identifier{l.channel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
		_ = conn.Close(ctx)
		return fmt.Errorf("LISTEN %s failed: %w", sanitized, err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancelLoop = cancel
	l.loopDone = make(chan struct{})
	go func() {
		defer close(l.loopDone)
		l.receiveLoop(loopCtx)
	}()

	slog.Info("Stream listener started", "channel", l.channel)
	return nil
}

// receiveLoop continuously receives notifications and nudges the wake
// channel. It is the sole goroutine that touches the pgx connection.
func (l *Listener) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			l.reconnect(ctx)
			continue
		}

		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // shutting down
			}
			slog.Error("NOTIFY receive error", "channel", l.channel, "error", err)
			l.reconnect(ctx)
			continue
		}

		slog.Debug("Change notification received",
			"channel", notification.Channel, "payload", notification.Payload)
		l.nudge()
	}
}

// nudge wakes the dispatcher without blocking; a full wake channel already
// carries the signal.
func (l *Listener) nudge() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// reconnect re-establishes the LISTEN connection with exponential backoff
// and re-issues LISTEN. It nudges the wake channel afterwards so anything
// written while disconnected is picked up promptly.
func (l *Listener) reconnect(ctx context.Context) {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := pgx.Connect(ctx, l.connString)
		if err != nil {
			slog.Error("LISTEN reconnect failed", "channel", l.channel, "error", err, "backoff", backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}

		sanitized := pgx.Identifier{l.channel}.Sanitize()
		if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
			slog.Error("Re-LISTEN failed", "channel", l.channel, "error", err)
			_ = conn.Close(ctx)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}

		l.conn = conn
		slog.Info("Stream listener reconnected", "channel", l.channel)
		l.nudge()
		return
	}
}

// Stop signals the receive loop to exit, waits for it to finish, then
// closes the LISTEN connection.
func (l *Listener) Stop(ctx context.Context) {
	if l.cancelLoop != nil {
		l.cancelLoop()
	}
	if l.loopDone != nil {
		<-l.loopDone
	}

	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close(ctx)
		l.conn = nil
	}
}

// Package pglisten provides an upstream PostgreSQL LISTEN/NOTIFY source for
// pollstream.PollStream, so a worker can wake up as soon as a message is
// published instead of waiting out its polling interval.
package pglisten

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultChannel is the channel name messages are published on unless a
// caller overrides it.
const DefaultChannel = "fxmq_published"

// Listener owns a dedicated pool connection subscribed to a NOTIFY channel
// and fans incoming notifications out to a buffered signal channel suitable
// for pollstream.PollStream.WithPgStream.
type Listener struct {
	pool    *pgxpool.Pool
	channel string
	signal  chan struct{}
}

// New creates a Listener for the given channel. Call Start to begin
// listening; Signal() returns the channel to pass to
// pollstream.PollStream.WithPgStream.
func New(pool *pgxpool.Pool, channel string) *Listener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Listener{
		pool:    pool,
		channel: channel,
		signal:  make(chan struct{}, 1),
	}
}

// Signal returns the channel that receives a value each time a notification
// arrives. It never closes while the listener is running.
func (l *Listener) Signal() <-chan struct{} {
	return l.signal
}

// Start acquires a dedicated connection, issues LISTEN, and blocks
// forwarding notifications to Signal() until ctx is done or an
// unrecoverable connection error occurs. Callers typically run it in its
// own goroutine.
func (l *Listener) Start(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("pglisten: acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgQuoteIdent(l.channel)); err != nil {
		return fmt.Errorf("pglisten: listen %s: %w", l.channel, err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN "+pgQuoteIdent(l.channel))
	}()

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if conn.Conn().IsClosed() {
				return fmt.Errorf("pglisten: connection lost on %s: %w", l.channel, err)
			}
			slog.WarnContext(ctx, "pglisten: wait for notification failed, retrying", "channel", l.channel, "error", err)
			continue
		}
		if notification.Channel != l.channel {
			continue
		}
		select {
		case l.signal <- struct{}{}:
		default:
			// A poll is already pending; no need to queue another.
		}
	}
}

// Notify publishes a NOTIFY on channel so any Listener subscribed to it
// wakes immediately. Used by the publish path as an optional low-latency
// push alongside the durable row insert.
func Notify(ctx context.Context, pool *pgxpool.Pool, channel, payload string) error {
	if channel == "" {
		channel = DefaultChannel
	}
	_, err := pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	if err != nil {
		return fmt.Errorf("pglisten: notify %s: %w", channel, err)
	}
	return nil
}

// pgQuoteIdent performs the minimal quoting needed for a LISTEN/UNLISTEN
// channel identifier; channel names here are always controlled by this
// module, not user input, but quoting keeps this safe if that ever changes.
func pgQuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

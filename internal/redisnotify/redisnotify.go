// Package redisnotify provides an alternate push-notification channel for
// the poll stream, backed by Redis Pub/Sub instead of PostgreSQL
// LISTEN/NOTIFY. It is useful when the queue's schemas are fanned out
// across multiple Postgres instances and a single shared wake-up channel
// is wanted across all of them.
package redisnotify

import (
	"context"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// Listener subscribes to a Redis Pub/Sub channel and forwards publishes as
// non-blocking signals, the same contract as pglisten.Listener.Signal.
type Listener struct {
	client  *redis.Client
	channel string
	signal  chan struct{}
}

// New creates a Listener on client's connection, subscribing to channel.
func New(client *redis.Client, channel string) *Listener {
	return &Listener{
		client:  client,
		channel: channel,
		signal:  make(chan struct{}, 1),
	}
}

// Signal returns the channel that receives a non-blocking pulse each time
// a message arrives on channel. Intended for worker.Pool.WithPgListener
// or pollstream.PollStream.WithPgStream.
func (l *Listener) Signal() <-chan struct{} {
	return l.signal
}

// Start subscribes to the channel and forwards messages until ctx is
// cancelled or the subscription errors.
func (l *Listener) Start(ctx context.Context) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			_ = msg
			select {
			case l.signal <- struct{}{}:
			default:
			}
		}
	}
}

// Publish publishes the payload "1" on channel, waking any subscribed
// Listener. Called by the publishing side after Queries.Publish commits.
func Publish(ctx context.Context, client *redis.Client, channel string) error {
	if err := client.Publish(ctx, channel, "1").Err(); err != nil {
		slog.ErrorContext(ctx, "redisnotify: publish failed", "channel", channel, "error", err)
		return err
	}
	return nil
}

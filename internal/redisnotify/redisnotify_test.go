package redisnotify_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jakoblilliemarck/fxmq/internal/redisnotify"
)

// newClient connects to FXMQ_TEST_REDIS_URL and skips the test otherwise,
// mirroring testutil.NewSchema's skip-if-unreachable convention.
func newClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("FXMQ_TEST_REDIS_URL")
	if addr == "" {
		t.Skip("FXMQ_TEST_REDIS_URL not set, skipping redis test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestListenerForwardsPublish(t *testing.T) {
	client := newClient(t)
	channel := "fxmq_test_notify"

	l := redisnotify.New(client, channel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)

	if err := redisnotify.Publish(context.Background(), client, channel); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-l.Signal():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			t.Fatalf("Start returned unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Start to return")
	}
}

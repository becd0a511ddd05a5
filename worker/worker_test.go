package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jakoblilliemarck/fxmq"
	"github.com/jakoblilliemarck/fxmq/backoff"
	"github.com/jakoblilliemarck/fxmq/internal/testutil"
	"github.com/jakoblilliemarck/fxmq/worker"
)

type pingMessage struct {
	N int `json:"n"`
}

func (pingMessage) Name() string { return "ping" }
func (pingMessage) Hash() int32  { return 42 }

func TestPoolDispatchesAndReportsSuccess(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	queries, err := fxmq.NewQueries(pool, schema)
	if err != nil {
		t.Fatalf("new queries: %v", err)
	}

	payload, _ := json.Marshal(pingMessage{N: 1})
	ctx := context.Background()
	published, err := queries.Publish(ctx, pingMessage{N: 1}, payload)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	var handled atomic.Int32
	p := worker.New(queries, uuid.Must(uuid.NewV7()), worker.Config{
		Workers:       1,
		LeaseDuration: time.Second,
		PollBackoff:   backoff.Exponential{Base: 2, BaseDelay: 5 * time.Millisecond},
	})
	p.Register(42, worker.HandlerFunc(func(_ context.Context, msg fxmq.RawMessage) error {
		handled.Add(1)
		return nil
	}))

	runCtx, cancel := context.WithCancel(context.Background())
	p.Start(runCtx)
	defer func() {
		cancel()
		p.Stop()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		succeeded, err := queries.IsSucceeded(ctx, published.ID, time.Now())
		if err != nil {
			t.Fatalf("is succeeded: %v", err)
		}
		if succeeded {
			if handled.Load() != 1 {
				t.Errorf("handled = %d, want 1", handled.Load())
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("message was not reported succeeded in time")
}

func TestPoolRetriesThenReportsDead(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	queries, err := fxmq.NewQueries(pool, schema)
	if err != nil {
		t.Fatalf("new queries: %v", err)
	}

	payload, _ := json.Marshal(pingMessage{N: 2})
	ctx := context.Background()
	published, err := queries.Publish(ctx, pingMessage{N: 2}, payload)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	p := worker.New(queries, uuid.Must(uuid.NewV7()), worker.Config{
		Workers:       1,
		LeaseDuration: time.Second,
		MaxAttempts:   2,
		RetryBackoff:  backoff.Constant{BaseDelay: 5 * time.Millisecond},
		PollBackoff:   backoff.Exponential{Base: 2, BaseDelay: 5 * time.Millisecond},
	})
	p.Register(42, worker.HandlerFunc(func(_ context.Context, msg fxmq.RawMessage) error {
		return errors.New("boom")
	}))

	runCtx, cancel := context.WithCancel(context.Background())
	p.Start(runCtx)
	defer func() {
		cancel()
		p.Stop()
	}()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		dead, err := queries.IsDead(ctx, published.ID, time.Now())
		if err != nil {
			t.Fatalf("is dead: %v", err)
		}
		if dead {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("message was not reported dead in time")
}

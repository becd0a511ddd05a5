package pollstream

import (
	"context"
	"testing"
	"time"

	"github.com/jakoblilliemarck/fxmq/backoff"
)

func TestBackoff(t *testing.T) {
	duration := 5 * time.Millisecond
	stream := New(backoff.Exponential{Base: 2, BaseDelay: duration})

	ctx := context.Background()
	const iterations = 3

	start := time.Now()
	for n := 0; n < iterations; n++ {
		ready, err := stream.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ready {
			t.Fatal("expected Next to report ready")
		}
		stream.IncrementFailedAttempts()
	}
	elapsed := time.Since(start)

	// Iteration 0: immediate (poll=true). Iteration 1: wait ~5ms
	// (attempt 1). Iteration 2: wait ~10ms (attempt 2).
	expectedMinimum := duration + 2*duration
	if elapsed < expectedMinimum {
		t.Errorf("elapsed %v, want >= %v", elapsed, expectedMinimum)
	}
}

func TestPollDurationOverride(t *testing.T) {
	duration := 5 * time.Millisecond
	stream := New(backoff.Exponential{Base: 2, BaseDelay: duration})
	stream.SetPoll()

	start := time.Now()
	ready, err := stream.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ready {
		t.Fatal("expected Next to report ready")
	}
	elapsed := time.Since(start)

	if elapsed >= duration {
		t.Errorf("elapsed %v, want < %v", elapsed, duration)
	}
}

func TestNotifyChannelWakesImmediately(t *testing.T) {
	duration := time.Hour
	stream := New(backoff.Exponential{Base: 2, BaseDelay: duration})
	// consume the initial poll=true readiness first.
	if _, err := stream.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}

	ch := make(chan struct{}, 1)
	stream.WithPgStream(ch)
	ch <- struct{}{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ready, err := stream.Next(context.Background())
		if err != nil {
			t.Errorf("Next: %v", err)
		}
		if !ready {
			t.Error("expected Next to report ready on notification")
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Next did not return after notification")
	}
}

func TestNextRespectsContextCancellation(t *testing.T) {
	stream := New(backoff.Exponential{Base: 2, BaseDelay: time.Hour})
	if _, err := stream.Next(context.Background()); err != nil {
		t.Fatalf("initial Next: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stream.Next(ctx)
	if err == nil {
		t.Error("expected Next to return an error when ctx is already done")
	}
}

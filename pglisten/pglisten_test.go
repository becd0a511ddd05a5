package pglisten_test

import (
	"context"
	"testing"
	"time"

	"github.com/jakoblilliemarck/fxmq/internal/testutil"
	"github.com/jakoblilliemarck/fxmq/pglisten"
)

func TestListenerForwardsNotification(t *testing.T) {
	pool, _ := testutil.NewSchema(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := pglisten.New(pool, "fxmq_test_channel")

	started := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		close(started)
		errCh <- l.Start(ctx)
	}()
	<-started
	// give the listener goroutine a moment to issue LISTEN before NOTIFY.
	time.Sleep(50 * time.Millisecond)

	if err := pglisten.Notify(ctx, pool, "fxmq_test_channel", "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case <-l.Signal():
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive notification signal")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			t.Errorf("Start returned unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

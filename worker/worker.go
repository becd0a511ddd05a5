// Package worker dispatches leased messages to registered handlers and
// reports their outcome back to the queue, mirroring the shape of the
// teacher's asyncqueue worker pool: a single poller goroutine feeds a
// bounded task channel, and a pool of worker goroutines drain it.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jakoblilliemarck/fxmq"
	"github.com/jakoblilliemarck/fxmq/backoff"
	"github.com/jakoblilliemarck/fxmq/internal/logging"
	"github.com/jakoblilliemarck/fxmq/internal/metrics"
	"github.com/jakoblilliemarck/fxmq/pollstream"
)

// Handler processes one dispatched message. Returning a non-nil error
// causes the message to be reported retryable (until MaxAttempts is
// exhausted, after which it is reported dead).
type Handler interface {
	Handle(ctx context.Context, msg fxmq.RawMessage) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, msg fxmq.RawMessage) error

func (f HandlerFunc) Handle(ctx context.Context, msg fxmq.RawMessage) error { return f(ctx, msg) }

// Config configures a Pool.
type Config struct {
	// Workers is the number of goroutines draining dispatched messages.
	Workers int
	// LeaseDuration is how long a dispatched message's lease is held
	// before it is eligible to be rescued as missing.
	LeaseDuration time.Duration
	// InvokeTimeout bounds a single Handler.Handle call.
	InvokeTimeout time.Duration
	// MaxAttempts is the number of failed attempts (including the first)
	// after which a message is reported dead instead of retryable.
	MaxAttempts int32
	// RetryBackoff computes the retry_earliest_at for a failed attempt.
	RetryBackoff backoff.Strategy
	// PollBackoff paces the poller's backoff after dispatch errors and its
	// fallback interval while the queue is empty.
	PollBackoff backoff.Exponential
}

const (
	defaultWorkers       = 8
	defaultLeaseDuration = 30 * time.Second
	defaultInvokeTimeout = 5 * time.Minute
	defaultMaxAttempts   = 5
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = defaultLeaseDuration
	}
	if c.InvokeTimeout <= 0 {
		c.InvokeTimeout = defaultInvokeTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBackoff == nil {
		c.RetryBackoff = backoff.Exponential{Base: 2, BaseDelay: time.Second}
	}
	if c.PollBackoff.Base == 0 {
		c.PollBackoff = backoff.Exponential{Base: 2, BaseDelay: 250 * time.Millisecond}
	}
	return c
}

// Pool polls the queue for dispatchable messages and runs them through
// registered handlers.
type Pool struct {
	queries  *fxmq.Queries
	cfg      Config
	hostID   uuid.UUID
	handlers map[int32]Handler

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	taskCh  chan fxmq.RawMessage
	poll    *pollstream.PollStream
}

// New creates a Pool scoped to queries, identifying itself as hostID for
// lease ownership.
func New(queries *fxmq.Queries, hostID uuid.UUID, cfg Config) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		queries:  queries,
		cfg:      cfg,
		hostID:   hostID,
		handlers: make(map[int32]Handler),
		stopCh:   make(chan struct{}),
		taskCh:   make(chan fxmq.RawMessage, cfg.Workers),
		poll:     pollstream.New(cfg.PollBackoff),
	}
}

// Register binds a Handler to a message hash (fxmq.Message.Hash()).
// Registering the same hash twice replaces the previous handler.
func (p *Pool) Register(hash int32, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[hash] = h
}

// WithPgListener attaches an upstream notification channel (typically
// pglisten.Listener.Signal()) so the poller wakes immediately on publish
// instead of waiting out its backoff interval.
func (p *Pool) WithPgListener(ch <-chan struct{}) {
	p.poll.WithPgStream(ch)
}

// Start launches the poller and worker goroutines. It returns immediately;
// call Stop to shut down.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.wg.Add(1)
	go p.poller(ctx)

	slog.Info("fxmq worker pool started", "workers", p.cfg.Workers, "host_id", p.hostID)
}

// Stop signals all goroutines to exit and waits for them to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	slog.Info("fxmq worker pool stopped")
}

func (p *Pool) poller(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		ready, err := p.poll.Next(ctx)
		if err != nil {
			return
		}
		if !ready {
			continue
		}

		msg, err := p.dispatchOne(ctx)
		if err != nil {
			slog.Error("fxmq dispatch failed", "error", err)
			p.poll.IncrementFailedAttempts()
			continue
		}
		if msg == nil {
			continue
		}

		p.poll.ResetFailedAttempts()
		p.poll.SetPoll() // more work may be waiting; don't wait out the backoff

		select {
		case p.taskCh <- *msg:
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// dispatchOne tries, in priority order, an unattempted message, then a
// retryable one, then a rescued missing one.
func (p *Pool) dispatchOne(ctx context.Context) (*fxmq.RawMessage, error) {
	now := time.Now()

	if msg, err := p.queries.DispatchUnattempted(ctx, now, p.hostID, p.cfg.LeaseDuration); err != nil {
		return nil, err
	} else if msg != nil {
		metrics.RecordDispatched(msg.Name)
		return msg, nil
	}

	if msg, err := p.queries.DispatchRetryable(ctx, now, p.hostID, p.cfg.LeaseDuration); err != nil {
		return nil, err
	} else if msg != nil {
		metrics.RecordDispatched(msg.Name)
		return msg, nil
	}

	if msg, err := p.queries.DispatchMissing(ctx, now, p.hostID, p.cfg.LeaseDuration); err != nil {
		return nil, err
	} else if msg != nil {
		metrics.RecordDispatched(msg.Name)
		metrics.RecordMissingRescued(msg.Name)
		return msg, nil
	}

	return nil, nil
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case msg := <-p.taskCh:
			p.process(ctx, id, msg)
		}
	}
}

func (p *Pool) process(ctx context.Context, workerID int, msg fxmq.RawMessage) {
	p.mu.Lock()
	handler, ok := p.handlers[msg.Hash]
	p.mu.Unlock()

	if !ok {
		slog.Warn("fxmq: no handler registered for message", "message_id", msg.ID, "hash", msg.Hash, "name", msg.Name)
		p.reportFailure(ctx, msg, fmt.Errorf("no handler registered for hash %d", msg.Hash))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.InvokeTimeout)
	defer cancel()

	start := time.Now()
	err := handler.Handle(callCtx, msg)
	now := time.Now()
	durationMs := now.Sub(start).Milliseconds()

	if err == nil {
		if err := p.queries.ReportSuccess(ctx, msg.ID, now); err != nil {
			slog.Error("fxmq: report success failed", "message_id", msg.ID, "error", err)
		}
		metrics.RecordSucceeded(msg.Name, now.Sub(start).Seconds())
		logging.Default().Log(&logging.DispatchLog{
			MessageID:  msg.ID.String(),
			Name:       msg.Name,
			Attempted:  msg.Attempted,
			DurationMs: durationMs,
			Success:    true,
		})
		return
	}

	slog.Warn("fxmq: handler failed", "worker", workerID, "message_id", msg.ID, "attempt", msg.Attempted, "error", err)
	dead := p.reportFailure(ctx, msg, err)
	metrics.RecordFailed(msg.Name, now.Sub(start).Seconds(), dead)
	logging.Default().Log(&logging.DispatchLog{
		MessageID:  msg.ID.String(),
		Name:       msg.Name,
		Attempted:  msg.Attempted,
		DurationMs: durationMs,
		Success:    false,
		Error:      err.Error(),
		Dead:       dead,
	})
}

// reportFailure reports cause as a retryable or dead attempt, whichever
// MaxAttempts dictates, and reports whether the message was marked dead.
func (p *Pool) reportFailure(ctx context.Context, msg fxmq.RawMessage, cause error) bool {
	now := time.Now()
	attempted := msg.Attempted + 1

	if attempted >= p.cfg.MaxAttempts {
		if err := p.queries.ReportDead(ctx, msg.ID, now, cause.Error()); err != nil {
			slog.Error("fxmq: report dead failed", "message_id", msg.ID, "error", err)
		}
		return true
	}

	retryAt := p.cfg.RetryBackoff.TryAt(attempted, now)
	if err := p.queries.ReportRetryable(ctx, msg.ID, now, attempted, retryAt, cause.Error()); err != nil {
		slog.Error("fxmq: report retryable failed", "message_id", msg.ID, "error", err)
	}
	return false
}

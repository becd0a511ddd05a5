// Package pollstream decides when a worker should poll the queue for work.
// It coordinates three triggers exactly as the original poll-control stream
// does: exponential backoff after failures, an optional upstream
// notification channel (PostgreSQL LISTEN/NOTIFY or any other push source),
// and a regular fallback interval — with a one-shot override to poll
// immediately regardless of the other two.
package pollstream

import (
	"context"
	"sync"
	"time"

	"github.com/jakoblilliemarck/fxmq/backoff"
)

// PollStream is a pull-based gate: Next blocks until the caller should poll
// the queue again, or ctx is done. It is safe for one goroutine to call Next
// while another calls the setters (IncrementFailedAttempts, SetPoll, ...).
type PollStream struct {
	mu sync.Mutex

	notify <-chan struct{}

	failedAttempts int32
	referenceTime  time.Time
	backoff        backoff.Exponential

	// poll forces the next call to Next to return immediately. Starts
	// true so the first poll bypasses backoff entirely.
	poll bool
}

// New creates a stream using the given exponential backoff strategy for
// both the failure-driven backoff and the regular fallback interval (at
// attempt 1, i.e. BaseDelay).
func New(bo backoff.Exponential) *PollStream {
	return &PollStream{
		referenceTime: time.Now(),
		backoff:       bo,
		poll:          true,
	}
}

// WithPgStream attaches an upstream notification channel. A value received
// on ch causes the next Next call to return immediately. Passing nil
// detaches any previously attached channel.
func (p *PollStream) WithPgStream(ch <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify = ch
}

// IncrementFailedAttempts records another failure. Subsequent polls use
// exponential backoff keyed on the new attempt count until reset.
func (p *PollStream) IncrementFailedAttempts() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failedAttempts++
}

// ResetFailedAttempts clears the failure counter. Future polls fall back to
// the regular interval until a failure is recorded again.
func (p *PollStream) ResetFailedAttempts() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failedAttempts = 0
}

// SetPoll forces the next call to Next to return immediately, bypassing
// the regular interval and notifications for exactly one poll. While failed
// attempts are recorded, the failure backoff still gates that poll.
func (p *PollStream) SetPoll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.poll = true
}

// Next blocks until the next poll is due and returns true, or returns an
// error if ctx is done first. Priority order, matching the original
// implementation: failure backoff (exclusive of everything else) > the poll
// override > an upstream notification > the regular fallback interval.
func (p *PollStream) Next(ctx context.Context) (bool, error) {
	for {
		p.mu.Lock()
		now := time.Now()

		if p.failedAttempts > 0 {
			tryAt := p.backoff.TryAt(p.failedAttempts, p.referenceTime)
			p.mu.Unlock()
			if ready, err := p.waitUntil(ctx, tryAt, now); err != nil || ready {
				return ready, err
			}
			continue
		}

		if p.poll {
			p.poll = false
			p.referenceTime = now
			p.mu.Unlock()
			return true, nil
		}

		notify := p.notify
		tryAt := p.backoff.TryAt(1, p.referenceTime)
		p.mu.Unlock()

		if !now.Before(tryAt) {
			p.mu.Lock()
			p.referenceTime = now
			p.mu.Unlock()
			return true, nil
		}

		timer := time.NewTimer(tryAt.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-notify:
			timer.Stop()
			p.mu.Lock()
			p.referenceTime = time.Now()
			p.mu.Unlock()
			return true, nil
		case <-timer.C:
			p.mu.Lock()
			p.referenceTime = time.Now()
			p.mu.Unlock()
			return true, nil
		}
	}
}

// waitUntil blocks until tryAt if it is in the future, then reports ready.
func (p *PollStream) waitUntil(ctx context.Context, tryAt, now time.Time) (bool, error) {
	if !now.Before(tryAt) {
		p.mu.Lock()
		p.referenceTime = now
		p.mu.Unlock()
		return true, nil
	}

	timer := time.NewTimer(tryAt.Sub(now))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		p.mu.Lock()
		p.referenceTime = time.Now()
		p.mu.Unlock()
		return true, nil
	}
}

// Package backoff implements the pure scheduling functions used by the
// queue to compute the earliest permissible instant for a retry or a poll.
// Strategies carry no state beyond their immutable parameters and perform
// no I/O.
package backoff

import "time"

// Strategy maps an attempt count and a reference instant to the earliest
// permissible next instant.
type Strategy interface {
	TryAt(attempt int32, from time.Time) time.Time
}

// Constant always waits BaseDelay, independent of the attempt count.
type Constant struct {
	BaseDelay time.Duration
}

func (c Constant) TryAt(_ int32, from time.Time) time.Time {
	return from.Add(c.BaseDelay)
}

// Linear waits BaseDelay multiplied by the attempt count.
type Linear struct {
	BaseDelay time.Duration
}

func (l Linear) TryAt(attempt int32, from time.Time) time.Time {
	return from.Add(l.BaseDelay * time.Duration(attempt))
}

// Exponential waits BaseDelay * Base^(attempt-1) for attempt > 0, and
// returns from unchanged for attempt <= 0.
type Exponential struct {
	BaseDelay time.Duration
	Base      uint32
}

func (e Exponential) TryAt(attempt int32, from time.Time) time.Time {
	if attempt <= 0 {
		return from
	}
	return from.Add(e.BaseDelay * time.Duration(ipow(e.Base, uint32(attempt-1))))
}

// ipow computes base^exp for non-negative integer exponents without the
// float round-trip of math.Pow, since attempt counts and bases are always
// small non-negative integers here.
func ipow(base, exp uint32) uint64 {
	result := uint64(1)
	b := uint64(base)
	for i := uint32(0); i < exp; i++ {
		result *= b
	}
	return result
}

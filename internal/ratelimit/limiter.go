// Package ratelimit spaces outbound calls by a fixed minimum delay.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for tests. Now must carry a monotonic reading.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Limiter guarantees that consecutive permitted starts are at least
// minDelay apart. There is no burst allowance.
type Limiter struct {
	minDelay  time.Duration
	tick      time.Duration
	clock     Clock
	countdown func(remaining time.Duration)

	mu    sync.Mutex
	last  time.Time
	begun bool
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithTick sets how often the countdown hook fires while waiting.
func WithTick(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.tick = d
		}
	}
}

// WithCountdown registers a hook called with the remaining wait at each tick.
func WithCountdown(fn func(remaining time.Duration)) Option {
	return func(l *Limiter) { l.countdown = fn }
}

// New creates a limiter. A non-positive delay disables waiting.
func New(minDelay time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		minDelay: minDelay,
		tick:     time.Second,
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until the next call may start, then claims that start.
// The first call is permitted at once. Cancellation returns ctx.Err()
// without claiming.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if l.begun {
		next := l.last.Add(l.minDelay)
		for {
			remaining := next.Sub(l.clock.Now())
			if remaining <= 0 {
				break
			}
			if l.countdown != nil {
				l.countdown(remaining)
			}
			step := min(remaining, l.tick)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.clock.After(step):
			}
		}
	}

	l.last = l.clock.Now()
	l.begun = true
	return nil
}

// MinDelay returns the configured spacing.
func (l *Limiter) MinDelay() time.Duration {
	return l.minDelay
}

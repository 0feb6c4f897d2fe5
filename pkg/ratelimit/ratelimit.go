// Package ratelimit paces outbound requests and exposes the visible
// backoff countdown shown while the upstream rate limit cools down.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between operations, with optional
// jitter. It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	ticker   *time.Ticker
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
	ch       <-chan time.Time
}

// Every creates a limiter that releases one operation per interval.
// Jitter must be between 0.0 and 1.0. A non-positive interval yields a
// limiter that never blocks.
func Every(interval time.Duration, jitter float64) *Limiter {
	if interval <= 0 {
		return &Limiter{jitter: jitter}
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	ticker := time.NewTicker(interval)
	return &Limiter{
		ticker:   ticker,
		jitter:   jitter,
		interval: interval,
		ch:       ticker.C,
	}
}

// PerSecond creates a limiter allowing rps operations per second.
// If rps <= 0 the limiter does not block.
func PerSecond(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{jitter: jitter}
	}
	return Every(time.Duration(float64(time.Second)/rps), jitter)
}

// Wait blocks until it is time to perform the next operation, or until
// the context is canceled. It applies jitter to the sleep time if configured.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.ch == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
		if l.jitter > 0 {
			// Random factor in [-1, 1); only the positive half adds sleep,
			// a ticker already enforces the minimum interval natively.
			factor := (rand.Float64() * 2) - 1.0
			extra := time.Duration(float64(l.interval) * l.jitter * factor)
			if extra > 0 {
				select {
				case <-time.After(extra):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}

// Stop releases any resources associated with the limiter.
func (l *Limiter) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
}

// Countdown is a cancellable, caller-visible backoff timer. A session
// owns exactly one; starting a new wait replaces the previous one, and
// Clear stops ticking immediately. Never a process-wide singleton, so
// concurrent sessions cannot clobber each other's timers.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	cancel    context.CancelFunc
	onTick    func(secondsLeft int)
}

// NewCountdown creates a countdown. onTick, if non-nil, is invoked once
// per elapsed second with the seconds still remaining (and a final 0).
func NewCountdown(onTick func(secondsLeft int)) *Countdown {
	return &Countdown{onTick: onTick}
}

// Wait starts a countdown of d (rounded up to whole seconds) and blocks
// until it completes, the countdown is cleared, or ctx is canceled.
// It returns ctx.Err() only for caller cancellation; a Clear from
// another goroutine ends the wait with a nil error.
func (c *Countdown) Wait(ctx context.Context, d time.Duration) error {
	seconds := int((d + time.Second - 1) / time.Second)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	waitCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.remaining = seconds
	c.mu.Unlock()

	defer c.Clear()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for seconds > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waitCtx.Done():
			return nil
		case <-ticker.C:
			seconds--
			c.mu.Lock()
			c.remaining = seconds
			tick := c.onTick
			c.mu.Unlock()
			if tick != nil {
				tick(seconds)
			}
		}
	}
	return nil
}

// Remaining returns the seconds left on the active countdown, 0 if idle.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Active reports whether a countdown is currently running.
func (c *Countdown) Active() bool {
	return c.Remaining() > 0
}

// Clear cancels the active countdown, if any, and resets the display.
func (c *Countdown) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.remaining = 0
}

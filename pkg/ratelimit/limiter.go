// Package ratelimit provides the request budget primitives shared by every
// network path: a fixed-window limiter and a FIFO task queue drained one task
// at a time behind it.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter approximates a fixed-window rate limit with a window-start
// timestamp and a counter: once the window has fully elapsed the counter
// resets and a fresh window begins at the current instant. The approximation
// is intentional: up to 2x the limit can land across a single window
// boundary (a full budget at the end of one window and another at the start
// of the next), never more. In exchange there is no refill goroutine and no
// per-call history to prune.
type Limiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int

	nowFn func() time.Time
}

// NewLimiter constructs a limiter permitting limit operations per window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{limit: limit, window: window, nowFn: time.Now}
}

// Acquire blocks until an operation may start without pushing the current
// window over its limit, then records the operation and returns. When the
// budget is spent it sleeps exactly the remainder of the window and
// re-evaluates in a loop; another caller may have claimed the freed slot
// while this one slept. The only error is ctx.Err() when the caller gives up
// waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.nowFn()
		if now.Sub(l.windowStart) >= l.window {
			l.windowStart = now
			l.count = 0
		}
		if l.count < l.limit {
			l.count++
			l.mu.Unlock()
			return nil
		}
		wait := l.window - now.Sub(l.windowStart)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Limit reports the configured per-window budget.
func (l *Limiter) Limit() int { return l.limit }

// Window reports the configured window duration.
func (l *Limiter) Window() time.Duration { return l.window }

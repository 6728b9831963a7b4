package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/zeusync/arena/internal/core/actor"
	"github.com/zeusync/arena/internal/core/dispatch"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter counts events in fixed windows. One limiter is meant to serve
// one connection, so every event bound through it shares the same budget.
type RateLimiter struct {
	limit  int
	window time.Duration
	clock  actor.Clock

	mu      sync.Mutex
	count   int
	started time.Time
}

// NewRateLimiter allows limit events per window. A non-positive limit
// disables limiting.
func NewRateLimiter(limit int, window time.Duration, clock actor.Clock) *RateLimiter {
	if clock == nil {
		clock = actor.SystemClock
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		started: clock.Now(),
	}
}

// Allow reports whether one more event fits in the current window.
func (r *RateLimiter) Allow() bool {
	if r.limit <= 0 {
		return true
	}

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.started) >= r.window {
		r.count = 0
		r.started = now
	}
	if r.count >= r.limit {
		return false
	}
	r.count++
	return true
}

// Middleware rejects events over budget with ErrRateLimited without calling
// the handler.
func (r *RateLimiter) Middleware() dispatch.Middleware {
	return func(event string, next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, args []json.RawMessage) error {
			if !r.Allow() {
				return ErrRateLimited
			}
			return next(ctx, args)
		}
	}
}

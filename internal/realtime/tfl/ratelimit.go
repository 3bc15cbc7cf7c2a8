package tfl

import (
	"context"
	"sync"
	"time"
)

// RateLimiter admits at most maxCalls calls in any trailing window of length period.
// A single instance is shared by every worker talking to the same API.
type RateLimiter struct {
	maxCalls int
	period   time.Duration

	mu    sync.Mutex // protects calls; held while waiting so admissions stay ordered
	calls []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a sliding-window rate limiter
func NewRateLimiter(maxCalls int, period time.Duration) *RateLimiter {
	if maxCalls < 1 {
		maxCalls = 1
	}
	return &RateLimiter{
		maxCalls: maxCalls,
		period:   period,
		calls:    make([]time.Time, 0, maxCalls),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until a call is admissible, records it, and returns.
// It returns ctx.Err() if the context ends first; nothing is recorded in that case.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		now := r.now()
		r.pruneLocked(now)

		if len(r.calls) < r.maxCalls {
			r.calls = append(r.calls, now)
			return nil
		}

		wait := r.period - now.Sub(r.calls[0])
		if wait < 0 {
			wait = 0
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// pruneLocked drops timestamps that have left the window - caller must hold r.mu
func (r *RateLimiter) pruneLocked(now time.Time) {
	keep := 0
	for keep < len(r.calls) && now.Sub(r.calls[keep]) >= r.period {
		keep++
	}
	if keep > 0 {
		r.calls = append(r.calls[:0], r.calls[keep:]...)
	}
}

// sleepContext sleeps for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

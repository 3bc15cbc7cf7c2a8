package tfl

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manual clock whose sleeps advance time instantly
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.t = c.t.Add(d)
	}
	return ctx.Err()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newFakeLimiter(maxCalls int, period time.Duration, clock *fakeClock) *RateLimiter {
	l := NewRateLimiter(maxCalls, period)
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l
}

func TestRateLimiterAdmitsUpToQuotaWithoutWaiting(t *testing.T) {
	clock := newFakeClock()
	l := newFakeLimiter(3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Empty(t, clock.sleeps)
}

func TestRateLimiterSleepsUntilOldestCallLeavesWindow(t *testing.T) {
	clock := newFakeClock()
	l := newFakeLimiter(2, time.Minute, clock)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx)) // t=0
	clock.Advance(10 * time.Second)
	require.NoError(t, l.Wait(ctx)) // t=10s
	clock.Advance(5 * time.Second)

	start := clock.Now()
	require.NoError(t, l.Wait(ctx))

	// Oldest call was at t=0 and now is t=15s: 45s remain in its window
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 45*time.Second, clock.sleeps[0])
	assert.Equal(t, start.Add(45*time.Second), clock.Now())
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	clock := newFakeClock()
	l := newFakeLimiter(1, time.Second, clock)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	clock.Advance(time.Second)
	require.NoError(t, l.Wait(ctx))

	assert.Empty(t, clock.sleeps, "a call exactly one period old no longer counts")
}

func TestRateLimiterSlidingWindowNeverExceedsQuota(t *testing.T) {
	clock := newFakeClock()
	const maxCalls = 5
	const period = time.Minute
	l := newFakeLimiter(maxCalls, period, clock)

	var admitted []time.Time
	for i := 0; i < 10*maxCalls; i++ {
		require.NoError(t, l.Wait(context.Background()))
		admitted = append(admitted, clock.Now())
		// Irregular arrival pattern
		clock.Advance(time.Duration(i%7) * time.Second)
	}

	for i := maxCalls; i < len(admitted); i++ {
		gap := admitted[i].Sub(admitted[i-maxCalls])
		assert.GreaterOrEqual(t, gap, period, "window ending at call %d holds more than %d calls", i, maxCalls)
	}
}

func TestRateLimiterConcurrentCallers(t *testing.T) {
	if testing.Short() {
		t.Skip("uses the real clock")
	}

	const maxCalls = 4
	const period = 200 * time.Millisecond
	const callers = 10 * maxCalls
	// Admission happens slightly before the caller observes it
	const tolerance = 50 * time.Millisecond

	l := NewRateLimiter(maxCalls, period)

	var mu sync.Mutex
	var admitted []time.Time
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Wait(context.Background()))
			now := time.Now()
			mu.Lock()
			admitted = append(admitted, now)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, admitted, callers)
	sort.Slice(admitted, func(i, j int) bool { return admitted[i].Before(admitted[j]) })
	for i := maxCalls; i < len(admitted); i++ {
		gap := admitted[i].Sub(admitted[i-maxCalls])
		assert.GreaterOrEqual(t, gap, period-tolerance)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	l := NewRateLimiter(1, time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, l.calls, 1, "a cancelled wait must not record a call")
}

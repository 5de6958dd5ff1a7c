package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances instantly on Sleep and records every wait.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) totalSlept() time.Duration {
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}

func newTestGovernor(t *testing.T) (*Governor, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	g := NewGovernor(zerolog.Nop(), WithClock(clock))
	return g, clock
}

func TestThrottle_FirstRequestDoesNotWait(t *testing.T) {
	g, clock := newTestGovernor(t)

	require.NoError(t, g.Throttle(context.Background()))
	assert.Empty(t, clock.sleeps, "first request should not be throttled")
}

func TestThrottle_EnforcesMinimumInterval(t *testing.T) {
	g, clock := newTestGovernor(t)
	ctx := context.Background()

	require.NoError(t, g.Throttle(ctx))

	// Second request immediately after: should wait the full interval.
	require.NoError(t, g.Throttle(ctx))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, DefaultMinInterval, clock.sleeps[0])

	// Enough time has passed: no wait.
	clock.now = clock.now.Add(500 * time.Millisecond)
	require.NoError(t, g.Throttle(ctx))
	assert.Len(t, clock.sleeps, 1, "no additional sleep expected")
}

func TestObserve_RetryAfterHeader(t *testing.T) {
	g, clock := newTestGovernor(t)

	header := http.Header{}
	header.Set("Retry-After", "2")

	retry, err := g.Observe(context.Background(), http.StatusTooManyRequests, header)
	require.NoError(t, err)
	assert.True(t, retry, "429 must request a retry")

	require.Len(t, clock.sleeps, 1)
	// 2s inflated by the 10% safety margin.
	assert.Equal(t, 2200*time.Millisecond, clock.sleeps[0])
}

func TestObserve_RetryAfterDefaults(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter string
	}{
		{"missing header", ""},
		{"unparsable header", "soon"},
		{"negative value", "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, clock := newTestGovernor(t)

			header := http.Header{}
			if tt.retryAfter != "" {
				header.Set("Retry-After", tt.retryAfter)
			}

			retry, err := g.Observe(context.Background(), http.StatusTooManyRequests, header)
			require.NoError(t, err)
			assert.True(t, retry)
			require.Len(t, clock.sleeps, 1)
			assert.Equal(t, DefaultRetryAfter, clock.sleeps[0])
		})
	}
}

func TestObserve_QuotaNearlyExhausted(t *testing.T) {
	g, clock := newTestGovernor(t)

	resetAt := clock.Now().Add(5 * time.Second)
	header := http.Header{}
	header.Set("X-Rate-Limit-Remaining", "1")
	header.Set("X-Rate-Limit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

	retry, err := g.Observe(context.Background(), http.StatusOK, header)
	require.NoError(t, err)
	assert.False(t, retry, "proactive quota wait must not request a retry")

	require.Len(t, clock.sleeps, 1)
	// Wait until reset plus the 1s buffer.
	assert.Equal(t, 5*time.Second+quotaResetBuffer, clock.sleeps[0])
}

func TestObserve_QuotaResetDefaults(t *testing.T) {
	tests := []struct {
		name  string
		reset func(c *fakeClock) string
	}{
		{"missing reset header", func(*fakeClock) string { return "" }},
		{"unparsable reset header", func(*fakeClock) string { return "later" }},
		{"reset already in the past", func(c *fakeClock) string {
			return strconv.FormatInt(c.Now().Add(-10*time.Second).Unix(), 10)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, clock := newTestGovernor(t)

			header := http.Header{}
			header.Set("X-Rate-Limit-Remaining", "0")
			if v := tt.reset(clock); v != "" {
				header.Set("X-Rate-Limit-Reset", v)
			}

			retry, err := g.Observe(context.Background(), http.StatusOK, header)
			require.NoError(t, err)
			assert.False(t, retry)
			require.Len(t, clock.sleeps, 1)
			assert.Equal(t, DefaultQuotaWait, clock.sleeps[0])
		})
	}
}

func TestObserve_HealthyResponseDoesNotWait(t *testing.T) {
	g, clock := newTestGovernor(t)

	header := http.Header{}
	header.Set("X-Rate-Limit-Remaining", "42")

	retry, err := g.Observe(context.Background(), http.StatusOK, header)
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Empty(t, clock.sleeps)
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{8, 256 * time.Second},
		{9, DefaultMaxBackoff},  // 512s capped at 300s
		{10, DefaultMaxBackoff}, // attempt budget exceeded, cap outright
		{50, DefaultMaxBackoff},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.attempt), func(t *testing.T) {
			g, _ := newTestGovernor(t)

			delay, err := g.Backoff(context.Background(), tt.attempt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, delay)
		})
	}
}

func TestBackoff_SleepsComputedDelay(t *testing.T) {
	g, clock := newTestGovernor(t)

	_, err := g.Backoff(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 8*time.Second, clock.sleeps[0])
}

func TestGovernor_CancelledContext(t *testing.T) {
	g, _ := newTestGovernor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Backoff(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)

	header := http.Header{}
	header.Set("Retry-After", "2")
	_, err = g.Observe(ctx, http.StatusTooManyRequests, header)
	assert.ErrorIs(t, err, context.Canceled)
}

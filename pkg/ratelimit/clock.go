package ratelimit

import (
	"context"
	"time"
)

// Clock abstracts time for the governor so that throttle, rate-limit and
// backoff waits can be tested deterministically.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is cancelled, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the Clock used outside of tests.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d with context cancellation support.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

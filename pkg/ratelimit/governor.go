// Package ratelimit implements request pacing for the Slack Web API.
// It enforces a minimum inter-request interval, reacts to explicit 429
// responses and the X-Rate-Limit-Remaining / X-Rate-Limit-Reset headers,
// and provides exponential backoff for transient network failures.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit handling.
var (
	rateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slack_rate_limit_waits_total",
		Help: "Total rate limit waits by reason (throttle, retry_after, quota)",
	}, []string{"reason"})

	rateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slack_rate_limit_wait_seconds",
		Help:    "Rate limit wait duration in seconds by reason",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 30, 60, 120},
	}, []string{"reason"})

	backoffWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slack_backoff_waits_total",
		Help: "Total exponential backoff waits for transient failures",
	})
)

// Defaults for the governor. Slack's documented behavior: Retry-After is in
// seconds, X-Rate-Limit-Reset is an epoch timestamp.
const (
	// DefaultMinInterval is the minimum spacing between request starts.
	DefaultMinInterval = 100 * time.Millisecond

	// DefaultRetryAfter is used when a 429 carries no usable Retry-After.
	DefaultRetryAfter = 60 * time.Second

	// retryAfterMargin inflates the server-reported wait as a safety margin.
	retryAfterMargin = 1.1

	// quotaResetBuffer is added on top of the reported reset time.
	quotaResetBuffer = 1 * time.Second

	// DefaultQuotaWait is used when the quota is exhausted but no reset
	// time is available, or the reported reset is already in the past.
	DefaultQuotaWait = 1 * time.Second

	// backoffBase is the first exponential backoff delay.
	backoffBase = 1 * time.Second

	// backoffMaxAttempts caps the exponent; beyond it Backoff waits MaxBackoff.
	backoffMaxAttempts = 10

	// DefaultMaxBackoff bounds a single backoff delay.
	DefaultMaxBackoff = 300 * time.Second
)

// Governor paces requests against the Slack Web API. It is owned by a single
// sequential fetch flow and requires no locking.
type Governor struct {
	clock       Clock
	logger      zerolog.Logger
	minInterval time.Duration
	maxBackoff  time.Duration

	lastRequest time.Time
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock injects a clock (used by tests).
func WithClock(c Clock) Option {
	return func(g *Governor) { g.clock = c }
}

// WithMinInterval overrides the minimum inter-request spacing.
func WithMinInterval(d time.Duration) Option {
	return func(g *Governor) { g.minInterval = d }
}

// WithMaxBackoff overrides the maximum single backoff delay.
func WithMaxBackoff(d time.Duration) Option {
	return func(g *Governor) { g.maxBackoff = d }
}

// NewGovernor creates a governor with the given logger.
func NewGovernor(logger zerolog.Logger, opts ...Option) *Governor {
	g := &Governor{
		clock:       SystemClock{},
		logger:      logger,
		minInterval: DefaultMinInterval,
		maxBackoff:  DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Throttle blocks until at least the minimum interval has elapsed since the
// previous request began. It records the new request start time.
func (g *Governor) Throttle(ctx context.Context) error {
	now := g.clock.Now()
	if !g.lastRequest.IsZero() {
		elapsed := now.Sub(g.lastRequest)
		if wait := g.minInterval - elapsed; wait > 0 {
			rateLimitWaitsTotal.WithLabelValues("throttle").Inc()
			rateLimitWaitSeconds.WithLabelValues("throttle").Observe(wait.Seconds())
			if err := g.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	g.lastRequest = g.clock.Now()
	return nil
}

// Observe inspects a response's rate limit signals. It returns true when the
// caller must retry the same logical request (explicit 429), after sleeping
// the mandated wait. When the remaining quota is nearly exhausted it sleeps
// proactively until the reported reset and returns false: the current
// response is still usable.
func (g *Governor) Observe(ctx context.Context, statusCode int, header http.Header) (bool, error) {
	if statusCode == http.StatusTooManyRequests {
		wait := g.retryAfter(header)

		g.logger.Warn().
			Dur("wait", wait).
			Msg("Rate limited by API, waiting before retry")

		rateLimitWaitsTotal.WithLabelValues("retry_after").Inc()
		rateLimitWaitSeconds.WithLabelValues("retry_after").Observe(wait.Seconds())

		if err := g.clock.Sleep(ctx, wait); err != nil {
			return false, err
		}
		return true, nil
	}

	if remaining, ok := parseIntHeader(header, "X-Rate-Limit-Remaining"); ok && remaining <= 1 {
		wait := g.quotaResetWait(header)

		g.logger.Info().
			Int("remaining", remaining).
			Dur("wait", wait).
			Msg("Approaching rate limit, pausing until reset")

		rateLimitWaitsTotal.WithLabelValues("quota").Inc()
		rateLimitWaitSeconds.WithLabelValues("quota").Observe(wait.Seconds())

		if err := g.clock.Sleep(ctx, wait); err != nil {
			return false, err
		}
	}

	return false, nil
}

// Backoff sleeps for an exponentially growing delay and returns the delay.
// Used for transient network failures, independent of explicit rate limit
// signals.
func (g *Governor) Backoff(ctx context.Context, attempt int) (time.Duration, error) {
	delay := g.backoffDelay(attempt)

	g.logger.Info().
		Int("attempt", attempt+1).
		Dur("delay", delay).
		Msg("Backing off before retry")

	backoffWaitsTotal.Inc()

	if err := g.clock.Sleep(ctx, delay); err != nil {
		return 0, err
	}
	return delay, nil
}

// backoffDelay computes min(base * 2^attempt, maxBackoff); once the attempt
// count exceeds the maximum the cap is returned outright to avoid overflow.
func (g *Governor) backoffDelay(attempt int) time.Duration {
	if attempt >= backoffMaxAttempts {
		return g.maxBackoff
	}
	delay := backoffBase << uint(attempt)
	if delay > g.maxBackoff {
		return g.maxBackoff
	}
	return delay
}

// retryAfter derives the 429 wait from the Retry-After header (seconds),
// inflated by the safety margin, defaulting when absent or unparsable.
func (g *Governor) retryAfter(header http.Header) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * retryAfterMargin * float64(time.Second))
		}
	}
	return DefaultRetryAfter
}

// quotaResetWait derives the proactive wait from X-Rate-Limit-Reset (epoch
// seconds) plus a buffer, defaulting when the header is missing, unparsable
// or already in the past.
func (g *Governor) quotaResetWait(header http.Header) time.Duration {
	if v := header.Get("X-Rate-Limit-Reset"); v != "" {
		if epoch, err := strconv.ParseFloat(v, 64); err == nil {
			resetAt := time.Unix(0, int64(epoch*float64(time.Second)))
			if wait := resetAt.Sub(g.clock.Now()); wait > 0 {
				return wait + quotaResetBuffer
			}
		}
	}
	return DefaultQuotaWait
}

func parseIntHeader(header http.Header, name string) (int, bool) {
	v := header.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

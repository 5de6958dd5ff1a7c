// Package client provides the core Slack Web API requester with rate
// limiting, retry and error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/slack-export/pkg/ratelimit"
)

// Prometheus metrics for API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slack_requests_total",
		Help: "Total Slack API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slack_request_duration_seconds",
		Help:    "Slack API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slack_errors_total",
		Help: "Total Slack API errors by kind",
	}, []string{"kind"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slack_request_retries_total",
		Help: "Total request retries after transient failures",
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slack_request_retry_exhausted_total",
		Help: "Total requests that exhausted the retry budget",
	})
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// Config holds the requester configuration.
type Config struct {
	// Token is the user OAuth bearer token (xoxp-...). Never persisted.
	Token string

	// BaseURL overrides the API root (used by tests).
	BaseURL string

	// UserAgent identifies the exporter to the API.
	UserAgent string

	// Timeout applies to metadata and search calls.
	Timeout time.Duration

	// BulkTimeout applies to bulk content retrieval (conversation history).
	BulkTimeout time.Duration

	// MaxRetries bounds transport-failure retries per logical request.
	// Rate-limit waits are not counted against this budget.
	MaxRetries int
}

// DefaultConfig returns a safe default configuration for the given token.
func DefaultConfig(token string) Config {
	return Config{
		Token:       token,
		BaseURL:     DefaultBaseURL,
		UserAgent:   "slack-export/1.0",
		Timeout:     30 * time.Second,
		BulkTimeout: 60 * time.Second,
		MaxRetries:  5,
	}
}

// Client performs idempotent GET requests against the Slack Web API. All
// calls flow through the rate governor; transient failures are retried with
// exponential backoff, rate limits are absorbed transparently, and API-level
// failures are classified into APIError kinds.
type Client struct {
	httpClient *http.Client
	governor   *ratelimit.Governor
	config     Config
	logger     zerolog.Logger
}

// New creates a new requester.
func New(cfg Config, governor *ratelimit.Governor, logger zerolog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if !strings.HasPrefix(cfg.Token, "xoxp-") && !strings.HasPrefix(cfg.Token, "xoxb-") {
		return nil, fmt.Errorf("token must be a Slack OAuth token (xoxp- or xoxb-)")
	}
	if governor == nil {
		return nil, fmt.Errorf("rate governor is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BulkTimeout <= 0 {
		cfg.BulkTimeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}

	return &Client{
		httpClient: &http.Client{},
		governor:   governor,
		config:     cfg,
		logger:     logger,
	}, nil
}

// envelope is the common wrapper of every Slack Web API response.
type envelope struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Needed   string `json:"needed"`
	Provided string `json:"provided"`
}

// GetJSON performs a GET against the named API method (e.g. "search.messages")
// and decodes the response body into out. Uses the metadata timeout.
func (c *Client) GetJSON(ctx context.Context, method string, params url.Values, out any) error {
	return c.get(ctx, method, params, c.config.Timeout, out)
}

// GetJSONBulk is GetJSON with the longer bulk-content timeout, for history
// endpoints returning large pages.
func (c *Client) GetJSONBulk(ctx context.Context, method string, params url.Values, out any) error {
	return c.get(ctx, method, params, c.config.BulkTimeout, out)
}

func (c *Client) get(ctx context.Context, method string, params url.Values, timeout time.Duration, out any) error {
	endpoint := method
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	// Transport failures consume the retry budget; rate-limit waits do not.
	attempt := 0
	for {
		if err := c.governor.Throttle(ctx); err != nil {
			return err
		}

		status, header, body, err := c.doRequest(ctx, method, params, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			errorsTotal.WithLabelValues(string(KindNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			attempt++
			if attempt >= c.config.MaxRetries {
				retryExhaustedTotal.Inc()
				c.logger.Error().
					Err(err).
					Str("endpoint", endpoint).
					Int("attempts", attempt).
					Msg("Network error, retry budget exhausted")
				return &APIError{
					Kind:     KindNetwork,
					Endpoint: endpoint,
					Message:  fmt.Sprintf("network error after %d attempts", attempt),
					Err:      fmt.Errorf("%w: %v", ErrRetryExhausted, err),
				}
			}

			retriesTotal.Inc()
			c.logger.Warn().
				Err(err).
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Network error, retrying")
			if _, err := c.governor.Backoff(ctx, attempt-1); err != nil {
				return err
			}
			continue
		}

		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", status)).Inc()

		// The governor absorbs 429s and proactive quota waits. A requested
		// retry repeats the same logical call without consuming the budget.
		mustRetry, err := c.governor.Observe(ctx, status, header)
		if err != nil {
			return err
		}
		if mustRetry {
			continue
		}

		if status >= 500 {
			errorsTotal.WithLabelValues(string(KindNetwork)).Inc()
			attempt++
			if attempt >= c.config.MaxRetries {
				retryExhaustedTotal.Inc()
				return &APIError{
					Kind:       KindNetwork,
					Endpoint:   endpoint,
					StatusCode: status,
					Message:    fmt.Sprintf("server error after %d attempts", attempt),
					Err:        ErrRetryExhausted,
				}
			}
			retriesTotal.Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", status).
				Int("attempt", attempt).
				Msg("Server error, retrying")
			if _, err := c.governor.Backoff(ctx, attempt-1); err != nil {
				return err
			}
			continue
		}

		if status >= 400 {
			errorsTotal.WithLabelValues(string(KindAPI)).Inc()
			return &APIError{
				Kind:       KindAPI,
				Endpoint:   endpoint,
				StatusCode: status,
				Message:    fmt.Sprintf("unexpected status %d", status),
			}
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			errorsTotal.WithLabelValues(string(KindAPI)).Inc()
			return &APIError{
				Kind:       KindAPI,
				Endpoint:   endpoint,
				StatusCode: status,
				Message:    "malformed response body",
				Err:        err,
			}
		}

		if !env.OK {
			// Some endpoints report rate limits in-band with a 200. Treat
			// like a 429 without a Retry-After hint, then repeat the call.
			if env.Error == "ratelimited" {
				if _, err := c.governor.Observe(ctx, http.StatusTooManyRequests, http.Header{}); err != nil {
					return err
				}
				continue
			}
			return c.classifyAPIError(endpoint, status, env)
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				errorsTotal.WithLabelValues(string(KindAPI)).Inc()
				return &APIError{
					Kind:       KindAPI,
					Endpoint:   endpoint,
					StatusCode: status,
					Message:    "decode response",
					Err:        err,
				}
			}
		}

		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("status", status).
			Msg("Request succeeded")
		return nil
	}
}

// classifyAPIError maps a terminal ok:false response to the error taxonomy.
// Permission and semantic errors are never retried.
func (c *Client) classifyAPIError(endpoint string, status int, env envelope) error {
	switch env.Error {
	case "missing_scope":
		errorsTotal.WithLabelValues(string(KindPermissionDenied)).Inc()
		msg := "token is missing a required OAuth scope"
		if env.Needed != "" {
			msg = fmt.Sprintf("token is missing required OAuth scope %q (provided: %q)", env.Needed, env.Provided)
		}
		c.logger.Error().
			Str("endpoint", endpoint).
			Str("needed", env.Needed).
			Msg("Missing OAuth scope")
		return &APIError{
			Kind:       KindPermissionDenied,
			Endpoint:   endpoint,
			StatusCode: status,
			Message:    msg,
		}
	default:
		errorsTotal.WithLabelValues(string(KindAPI)).Inc()
		return &APIError{
			Kind:       KindAPI,
			Endpoint:   endpoint,
			StatusCode: status,
			Message:    env.Error,
		}
	}
}

// doRequest executes one HTTP GET attempt and returns status, headers and the
// full body. The body is always drained so the connection can be reused.
func (c *Client) doRequest(ctx context.Context, method string, params url.Values, timeout time.Duration) (int, http.Header, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/%s", strings.TrimRight(c.config.BaseURL, "/"), method)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("create request: %w", err)
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response body: %w", err)
	}

	return resp.StatusCode, resp.Header, body, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

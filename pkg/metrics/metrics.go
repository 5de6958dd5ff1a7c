// Package metrics provides the centralized Prometheus metrics registry for
// the Slack export tool. All metrics are defined in their respective
// packages (client, ratelimit, paginate, sink) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the export tool.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - slack_rate_limit_waits_total{reason} (Counter): Waits by reason (throttle, retry_after, quota)
//   - slack_rate_limit_wait_seconds{reason} (Histogram): Wait duration by reason
//   - slack_backoff_waits_total (Counter): Exponential backoff waits for transient failures
//
// Request Metrics (pkg/client):
//   - slack_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - slack_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - slack_errors_total{kind} (Counter): Errors by kind (network, permission_denied, api)
//   - slack_request_retries_total (Counter): Retries after transient failures
//   - slack_request_retry_exhausted_total (Counter): Requests that exhausted the retry budget
//
// Pagination Metrics (pkg/paginate):
//   - slack_pages_fetched_total{variant} (Counter): Pages fetched by pagination variant
//   - slack_records_fetched_total{variant} (Counter): Records fetched by pagination variant
//   - slack_result_cap_hits_total (Counter): Fetches that stopped at the result-size cap
//   - slack_chunk_windows_total (Counter): Monthly windows fetched by the chunked fetcher
//   - slack_chunk_duplicates_total (Counter): Duplicates collapsed across window boundaries
//
// Sink Metrics (pkg/sink):
//   - slack_sink_records_written_total{encoding} (Counter): Records written by sink encoding
//   - slack_sink_syncs_total{encoding} (Counter): Explicit fsyncs by sink encoding
//
// Example Prometheus Queries:
//
//   # Share of requests that had to wait for a rate limit
//   sum(rate(slack_rate_limit_waits_total[5m])) / sum(rate(slack_requests_total[5m]))
//
//   # Request Error Rate
//   rate(slack_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(slack_request_duration_seconds_bucket[5m]))
//
//   # Duplicate rate across chunk boundaries
//   rate(slack_chunk_duplicates_total[5m]) / rate(slack_records_fetched_total[5m])

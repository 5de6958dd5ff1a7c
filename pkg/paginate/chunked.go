package paginate

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	chunkWindowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slack_chunk_windows_total",
		Help: "Total monthly windows fetched by the chunked fetcher",
	})

	chunkDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slack_chunk_duplicates_total",
		Help: "Total duplicate records collapsed across window boundaries",
	})
)

// DefaultPerWindowCap bounds one window's fetch. A realistic month of
// traffic stays far below this, so no window is silently truncated.
const DefaultPerWindowCap = 10000

// WindowFetcher runs one full paginated fetch for a single time window,
// typically by deriving a date-bounded query from a base query.
type WindowFetcher func(ctx context.Context, window TimeWindow, opts Options) (*Result, error)

// ChunkedOptions bound a chunked fetch.
type ChunkedOptions struct {
	// Range is the overall time range. Zero value means the last two years
	// through today.
	Range TimeWindow

	// PerWindowCap limits a single window's fetch (default 10000).
	PerWindowCap int

	// OverallCap limits the total across all windows (0 = unlimited); once
	// reached, remaining windows are skipped.
	OverallCap int

	// PageSize is the per-request page-size hint.
	PageSize int
}

// FetchChunked retrieves a complete result set for a query whose total
// volume exceeds what a single paginated query can practically return, by
// partitioning the time axis into calendar months and running one fetch per
// window in increasing order.
//
// The merged result is deduplicated by identity key: adjacent windows can
// both return a record with a boundary timestamp. A single window's failure
// aborts the whole fetch rather than silently skipping a month, which would
// make the result look complete when it is not; records fetched before the
// failure are still returned alongside the error.
func FetchChunked(ctx context.Context, fetch WindowFetcher, opts ChunkedOptions) ([]Record, error) {
	var merged []Record
	_, err := runChunked(ctx, fetch, opts, func(rec Record) error {
		merged = append(merged, rec)
		return nil
	})
	return merged, err
}

// StreamChunked is FetchChunked writing each window's first-occurrence
// records to a sink as the window completes, returning the count written.
// On a window failure everything emitted so far has already reached the
// sink.
func StreamChunked(ctx context.Context, fetch WindowFetcher, opts ChunkedOptions, sink Sink) (int, error) {
	return runChunked(ctx, fetch, opts, sink.Write)
}

// runChunked is the shared window loop. Records are emitted in window order,
// first occurrence wins across window boundaries.
func runChunked(ctx context.Context, fetch WindowFetcher, opts ChunkedOptions, emit func(Record) error) (int, error) {
	overall := opts.Range
	if overall.Start.IsZero() || overall.End.IsZero() {
		overall = DefaultRange(time.Now())
	}
	perWindow := opts.PerWindowCap
	if perWindow <= 0 {
		perWindow = DefaultPerWindowCap
	}

	windows := MonthlyWindows(overall.Start, overall.End)

	log.Info().
		Str("range", overall.String()).
		Int("windows", len(windows)).
		Msg("Starting chunked fetch")

	seen := make(map[string]struct{})
	count := 0

	for _, window := range windows {
		res, err := fetch(ctx, window, Options{Cap: perWindow, PageSize: opts.PageSize})

		// Emit what the window returned even when it failed part-way; the
		// error still aborts the fetch below.
		windowCount := 0
		var emitErr error
		if res != nil {
			for _, rec := range res.Records {
				key := rec.IdentityKey()
				if _, dup := seen[key]; dup {
					chunkDuplicatesTotal.Inc()
					continue
				}
				if opts.OverallCap > 0 && count >= opts.OverallCap {
					break
				}
				seen[key] = struct{}{}
				if emitErr = emit(rec); emitErr != nil {
					break
				}
				count++
				windowCount++
			}
		}
		if err != nil {
			return count, err
		}
		if emitErr != nil {
			return count, emitErr
		}
		chunkWindowsTotal.Inc()

		log.Info().
			Str("window", window.String()).
			Int("records", windowCount).
			Int("total", count).
			Msg("Window fetched")

		if opts.OverallCap > 0 && count >= opts.OverallCap {
			log.Warn().
				Int("cap", opts.OverallCap).
				Str("window", window.String()).
				Msg("Overall cap reached, skipping remaining windows")
			break
		}
	}

	return count, nil
}

package paginate

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slack_pages_fetched_total",
		Help: "Total pages fetched by pagination variant",
	}, []string{"variant"})

	recordsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slack_records_fetched_total",
		Help: "Total records fetched by pagination variant",
	}, []string{"variant"})

	capHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slack_result_cap_hits_total",
		Help: "Total fetches that stopped at the result-size cap",
	})
)

// Record is one fetched record. The pagination core is agnostic to endpoint
// payload shapes; it needs only an identity key for deduplication across
// pages and windows.
type Record interface {
	// IdentityKey uniquely identifies the underlying record. For Slack
	// messages this is the (timestamp, channel) pair: timestamps alone can
	// legitimately collide across channels.
	IdentityKey() string
}

// Sink consumes records incrementally as pages arrive. The streaming fetch
// variants write each page's records to the sink instead of accumulating the
// full result set in memory.
type Sink interface {
	Write(rec Record) error
}

// PageRequest addresses one page of a paginated result set.
type PageRequest struct {
	// Cursor is the continuation token (cursor variant; empty on first call).
	Cursor string

	// Page is the 1-based page number (numbered variant).
	Page int

	// Limit is the page-size hint forwarded to the API.
	Limit int
}

// PageResult is one API response unit: a record batch plus pagination
// metadata. It is transient; records are absorbed into the running result.
type PageResult struct {
	Records []Record

	// NextCursor continues a cursor fetch; empty means exhausted.
	NextCursor string

	// HasMore signals more pages for cursor endpoints that report it
	// explicitly (conversations.history).
	HasMore bool

	// Page and Pages are current/total page numbers for numbered endpoints.
	// Pages == 0 means the metadata is absent and the response is treated as
	// the only page.
	Page  int
	Pages int

	// Total is the server-reported total result count, when available.
	Total int
}

// PageFunc fetches one page. Implementations wrap a single API method call
// and translate its response shape into a PageResult.
type PageFunc func(ctx context.Context, req PageRequest) (*PageResult, error)

// Options bound one fetch.
type Options struct {
	// PageSize is the per-request page-size hint.
	PageSize int

	// Cap limits the total records fetched (0 = unlimited).
	Cap int
}

// Result is a completed (or aborted) fetch: records in receipt order plus
// the cap-versus-exhaustion distinction.
type Result struct {
	Records []Record

	// HitCap is true when the fetch stopped at the result cap while more
	// data was (or may have been) available. False means natural exhaustion:
	// the result set is complete.
	HitCap bool
}

// FetchAllCursor retrieves a complete result set via cursor pagination.
// On error it returns the records accumulated so far alongside the error.
func FetchAllCursor(ctx context.Context, fetch PageFunc, opts Options) (*Result, error) {
	return collect(ctx, fetch, opts, advanceCursor, "cursor")
}

// FetchAllPages retrieves a complete result set via numbered-page pagination.
// On error it returns the records accumulated so far alongside the error.
func FetchAllPages(ctx context.Context, fetch PageFunc, opts Options) (*Result, error) {
	return collect(ctx, fetch, opts, advancePages, "pages")
}

// StreamCursor is FetchAllCursor writing records to a sink as pages arrive,
// returning only the count and the hit-cap flag.
func StreamCursor(ctx context.Context, fetch PageFunc, opts Options, sink Sink) (int, bool, error) {
	return run(ctx, fetch, opts, sink.Write, advanceCursor, "cursor")
}

// StreamPages is FetchAllPages writing records to a sink as pages arrive.
func StreamPages(ctx context.Context, fetch PageFunc, opts Options, sink Sink) (int, bool, error) {
	return run(ctx, fetch, opts, sink.Write, advancePages, "pages")
}

// advanceFunc decides whether another page follows and mutates req to
// address it. Termination is an explicit state transition, never an error.
type advanceFunc func(req *PageRequest, res *PageResult) bool

func advanceCursor(req *PageRequest, res *PageResult) bool {
	if res.NextCursor == "" {
		return false
	}
	if !res.HasMore {
		return false
	}
	req.Cursor = res.NextCursor
	return true
}

func advancePages(req *PageRequest, res *PageResult) bool {
	// Absent total-page metadata: treat the response as the only page.
	if res.Pages == 0 {
		return false
	}
	current := res.Page
	if current == 0 {
		current = req.Page
	}
	if current >= res.Pages {
		return false
	}
	req.Page++
	return true
}

func collect(ctx context.Context, fetch PageFunc, opts Options, advance advanceFunc, variant string) (*Result, error) {
	res := &Result{}
	emit := func(rec Record) error {
		res.Records = append(res.Records, rec)
		return nil
	}
	_, hitCap, err := run(ctx, fetch, opts, emit, advance, variant)
	res.HitCap = hitCap
	return res, err
}

// run is the shared pagination loop. Pages are fetched and emitted in strict
// request order; whatever order the API returns within a page is preserved.
func run(ctx context.Context, fetch PageFunc, opts Options, emit func(Record) error, advance advanceFunc, variant string) (int, bool, error) {
	req := PageRequest{Page: 1, Limit: opts.PageSize}
	count := 0
	hitCap := false

	for {
		if err := ctx.Err(); err != nil {
			return count, hitCap, err
		}

		// Shrink the final request when the cap is close.
		if opts.Cap > 0 && opts.PageSize > 0 {
			if remaining := opts.Cap - count; remaining < opts.PageSize {
				req.Limit = remaining
			}
		}

		res, err := fetch(ctx, req)
		if err != nil {
			return count, hitCap, err
		}

		pagesFetchedTotal.WithLabelValues(variant).Inc()

		batch := res.Records
		if len(batch) == 0 {
			log.Debug().
				Str("variant", variant).
				Int("records", count).
				Msg("Empty page, fetch exhausted")
			break
		}

		truncated := false
		if opts.Cap > 0 && count+len(batch) > opts.Cap {
			batch = batch[:opts.Cap-count]
			truncated = true
		}

		for _, rec := range batch {
			if err := emit(rec); err != nil {
				return count, hitCap, err
			}
			count++
		}
		recordsFetchedTotal.WithLabelValues(variant).Add(float64(len(batch)))

		log.Debug().
			Str("variant", variant).
			Int("page", req.Page).
			Int("batch", len(batch)).
			Int("records", count).
			Msg("Page fetched")

		more := advance(&req, res)

		if opts.Cap > 0 && count >= opts.Cap {
			// Reaching the cap with more data available (or a truncated
			// batch) means the true total may be larger.
			if truncated || more {
				hitCap = true
				capHitsTotal.Inc()
				log.Warn().
					Str("variant", variant).
					Int("cap", opts.Cap).
					Msg("Result cap reached, result set may be incomplete")
			}
			break
		}

		if !more {
			break
		}
	}

	return count, hitCap, nil
}

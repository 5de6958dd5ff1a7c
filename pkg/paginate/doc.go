// Package paginate implements resilient retrieval of complete result sets
// from the cursor- and page-paginated Slack Web API.
//
// Three strategies share one output contract (records in receipt order plus a
// hit-cap flag):
//
//   - Cursor: continuation via an opaque next_cursor token
//     (conversations.history, conversations.list, stars.list)
//   - Numbered pages: current/total page metadata (search.messages)
//   - Monthly chunks: a driver that partitions a long time range into
//     calendar-month windows and runs one full fetch per window, merging and
//     deduplicating across windows (search endpoints cap results per query;
//     one month of traffic stays far below that cap)
//
// Example:
//
//	res, err := paginate.FetchAllPages(ctx, fetchPage, paginate.Options{
//		PageSize: 20,
//		Cap:      100,
//	})
//	if res.HitCap {
//		// the true total may be larger; suggest a chunked re-fetch
//	}
//
// The hit-cap flag is distinct from natural exhaustion: hitting the cap means
// the true total may be larger, while exhaustion implies completeness.
//
// Fetching is strictly sequential. Cursors and the rate-limit budget are
// shared sequential state, and Slack's limits are tight enough that parallel
// fetching would mostly produce additional 429 responses.
package paginate

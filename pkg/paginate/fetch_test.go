package paginate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	key string
}

func (r testRecord) IdentityKey() string { return r.key }

func records(keys ...string) []Record {
	out := make([]Record, len(keys))
	for i, k := range keys {
		out[i] = testRecord{key: k}
	}
	return out
}

func keys(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.IdentityKey()
	}
	return out
}

// cursorSource scripts a sequence of cursor-linked pages: page i links to
// page i+1 until the final page, which carries no continuation cursor.
func cursorSource(t *testing.T, pages [][]Record) PageFunc {
	t.Helper()
	return func(_ context.Context, req PageRequest) (*PageResult, error) {
		idx := 0
		if req.Cursor != "" {
			if _, err := fmt.Sscanf(req.Cursor, "cursor-%d", &idx); err != nil {
				t.Fatalf("unexpected cursor %q", req.Cursor)
			}
		}
		res := &PageResult{Records: pages[idx]}
		if idx+1 < len(pages) {
			res.NextCursor = fmt.Sprintf("cursor-%d", idx+1)
			res.HasMore = true
		}
		return res, nil
	}
}

// pageSource scripts numbered pages with paging metadata.
func pageSource(pages [][]Record) PageFunc {
	return func(_ context.Context, req PageRequest) (*PageResult, error) {
		return &PageResult{
			Records: pages[req.Page-1],
			Page:    req.Page,
			Pages:   len(pages),
		}, nil
	}
}

// For any sequence of pages where the final page has no continuation cursor,
// the fetch terminates with exactly the concatenation of all pages' records
// in receipt order.
func TestFetchAllCursor_Termination(t *testing.T) {
	fetch := cursorSource(t, [][]Record{
		records("a", "b"),
		records("c", "d"),
		records("e"),
	})

	res, err := FetchAllCursor(context.Background(), fetch, Options{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys(res.Records))
	assert.False(t, res.HitCap)
}

func TestFetchAllCursor_StopsWhenHasMoreFalse(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, req PageRequest) (*PageResult, error) {
		calls++
		return &PageResult{
			Records:    records("a"),
			NextCursor: "next",
			HasMore:    false,
		}, nil
	}

	res, err := FetchAllCursor(context.Background(), fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"a"}, keys(res.Records))
}

func TestFetchAllCursor_StopsOnEmptyBatch(t *testing.T) {
	fetch := func(_ context.Context, req PageRequest) (*PageResult, error) {
		return &PageResult{NextCursor: "next", HasMore: true}, nil
	}

	res, err := FetchAllCursor(context.Background(), fetch, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.False(t, res.HitCap)
}

// Query "from:@alice", page size 2, 5 records across 3 pages (2,2,1).
func TestFetchAllCursor_Scenario(t *testing.T) {
	pages := [][]Record{
		records("1", "2"),
		records("3", "4"),
		records("5"),
	}

	t.Run("cap 100 returns all 5", func(t *testing.T) {
		res, err := FetchAllCursor(context.Background(), cursorSource(t, pages), Options{PageSize: 2, Cap: 100})
		require.NoError(t, err)
		assert.Len(t, res.Records, 5)
		assert.False(t, res.HitCap)
	})

	t.Run("cap 3 truncates within page 2", func(t *testing.T) {
		res, err := FetchAllCursor(context.Background(), cursorSource(t, pages), Options{PageSize: 2, Cap: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", "3"}, keys(res.Records))
		assert.True(t, res.HitCap)
	})
}

func TestFetchAllCursor_CapEqualToAvailableIsNotHit(t *testing.T) {
	pages := [][]Record{
		records("a", "b"),
		records("c"),
	}

	res, err := FetchAllCursor(context.Background(), cursorSource(t, pages), Options{PageSize: 2, Cap: 3})
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.False(t, res.HitCap, "cap equal to the available count means the fetch is complete")
}

func TestFetchAllCursor_ErrorReturnsPartialResults(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(_ context.Context, req PageRequest) (*PageResult, error) {
		if req.Cursor == "" {
			return &PageResult{Records: records("a", "b"), NextCursor: "c1", HasMore: true}, nil
		}
		return nil, boom
	}

	res, err := FetchAllCursor(context.Background(), fetch, Options{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, keys(res.Records), "accumulated records survive the error")
}

func TestFetchAllPages_WalksAllPages(t *testing.T) {
	fetch := pageSource([][]Record{
		records("a", "b"),
		records("c", "d"),
		records("e"),
	})

	res, err := FetchAllPages(context.Background(), fetch, Options{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys(res.Records))
	assert.False(t, res.HitCap)
}

func TestFetchAllPages_MissingPagingMetadataMeansSinglePage(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, req PageRequest) (*PageResult, error) {
		calls++
		return &PageResult{Records: records("only")}, nil
	}

	res, err := FetchAllPages(context.Background(), fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"only"}, keys(res.Records))
}

func TestFetchAllPages_CapStopsBeforeNextPage(t *testing.T) {
	fetch := pageSource([][]Record{
		records("a", "b"),
		records("c", "d"),
	})

	res, err := FetchAllPages(context.Background(), fetch, Options{PageSize: 2, Cap: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys(res.Records))
	assert.True(t, res.HitCap, "more pages were available when the cap was reached")
}

func TestRun_ShrinksFinalRequestLimit(t *testing.T) {
	var limits []int
	fetch := func(_ context.Context, req PageRequest) (*PageResult, error) {
		limits = append(limits, req.Limit)
		return &PageResult{
			Records: records(fmt.Sprintf("a%d", len(limits)), fmt.Sprintf("b%d", len(limits))),
			Page:    req.Page,
			Pages:   10,
		}, nil
	}

	res, err := FetchAllPages(context.Background(), fetch, Options{PageSize: 2, Cap: 3})
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, []int{2, 1}, limits, "final request should ask only for the remainder")
}

type collectSink struct {
	recs    []Record
	failAt  int
	written int
}

func (s *collectSink) Write(rec Record) error {
	s.written++
	if s.failAt > 0 && s.written >= s.failAt {
		return errors.New("disk full")
	}
	s.recs = append(s.recs, rec)
	return nil
}

func TestStreamCursor_WritesToSink(t *testing.T) {
	pages := [][]Record{
		records("a", "b"),
		records("c"),
	}
	sink := &collectSink{}

	count, hitCap, err := StreamCursor(context.Background(), cursorSource(t, pages), Options{PageSize: 2}, sink)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.False(t, hitCap)
	assert.Equal(t, []string{"a", "b", "c"}, keys(sink.recs))
}

func TestStreamCursor_SinkErrorPropagates(t *testing.T) {
	pages := [][]Record{records("a", "b", "c")}
	sink := &collectSink{failAt: 2}

	_, _, err := StreamCursor(context.Background(), cursorSource(t, pages), Options{}, sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestFetch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetch := func(context.Context, PageRequest) (*PageResult, error) {
		t.Fatal("fetch should not be called with a cancelled context")
		return nil, nil
	}

	_, err := FetchAllCursor(ctx, fetch, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

package paginate

import (
	"fmt"
	"time"
)

// TimeWindow is an inclusive date range. Windows generated for a range are
// contiguous, non-overlapping and monotonically increasing.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// String renders the window as YYYY-MM-DD..YYYY-MM-DD.
func (w TimeWindow) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// DefaultRange returns the fallback overall range: the last two years
// through today.
func DefaultRange(now time.Time) TimeWindow {
	end := truncateToDay(now)
	return TimeWindow{Start: end.AddDate(0, 0, -730), End: end}
}

// MonthlyWindows partitions [start, end] into calendar-month windows. The
// first window begins at start (not at the first of its month), each
// subsequent window spans one full calendar month, and the last window's end
// is clamped to the overall end even if that shortens the final month.
func MonthlyWindows(start, end time.Time) []TimeWindow {
	start = truncateToDay(start)
	end = truncateToDay(end)
	if end.Before(start) {
		return nil
	}

	var windows []TimeWindow

	cursor := start
	for !cursor.After(end) {
		monthEnd := endOfMonth(cursor)
		if monthEnd.After(end) {
			monthEnd = end
		}
		windows = append(windows, TimeWindow{Start: cursor, End: monthEnd})
		cursor = monthEnd.AddDate(0, 0, 1)
	}

	return windows
}

// endOfMonth returns the last calendar day of t's month. AddDate normalizes
// day 0 of the next month, which handles both leap years and the
// December-to-January rollover.
func endOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

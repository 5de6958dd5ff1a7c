package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/slack-export/pkg/paginate"
	"github.com/Sternrassler/slack-export/pkg/sink"
	"github.com/Sternrassler/slack-export/pkg/slack"
)

// slackSortNewestFirst orders an export newest message first, the order
// readers expect in a results document.
func slackSortNewestFirst(records []paginate.Record) {
	slack.SortByTime(records, true)
}

// defaultOutputPath derives a timestamped Markdown filename for exports
// that don't name one.
func defaultOutputPath(kind string) string {
	return fmt.Sprintf("slack_%s_%s.md", kind, time.Now().Format("20060102_150405"))
}

// openSink picks the encoding from the output file extension: .json is a
// JSON array, .jsonl or .ndjson is line-delimited JSON, anything else is
// Markdown.
func openSink(path, title string, meta ...sink.Metadata) (sink.Sink, error) {
	var s sink.Sink
	switch {
	case strings.HasSuffix(path, ".json"):
		s = sink.NewJSONArray(path, meta...)
	case strings.HasSuffix(path, ".jsonl"), strings.HasSuffix(path, ".ndjson"):
		s = sink.NewJSONLines(path)
	default:
		s = sink.NewMarkdown(path, title, meta...)
	}
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

// writeAll drains a completed record set into the sink.
func writeAll(s sink.Sink, records []paginate.Record) error {
	for _, rec := range records {
		if err := s.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// exportRecords enriches, sorts and writes a record set to the output file.
// It is used for completed fetches and for the records accumulated before a
// fetch failure; incomplete adds a header note so a partial export is never
// mistaken for a full one.
func exportRecords(ctx context.Context, svc *slack.Service, records []paginate.Record, path, title string, incomplete bool, meta ...sink.Metadata) error {
	svc.Enrich(ctx, records)
	slackSortNewestFirst(records)

	if incomplete {
		meta = append(meta, sink.Metadata{
			Key:   "Note",
			Value: "INCOMPLETE export, a fetch error interrupted this run",
		})
	}
	out, err := openSink(path, title, meta...)
	if err != nil {
		return err
	}
	if err := writeAll(out, records); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// printPartialNote reports that a failed fetch's partial results were
// still written.
func printPartialNote(count int, path string, fetchErr error) {
	fmt.Printf("\nWARNING: export incomplete: %v\n", fetchErr)
	fmt.Printf("The %d messages fetched before the failure were written to %s.\n", count, path)
}

// printSummary reports the outcome of an export run on stdout.
func printSummary(count int, path string, elapsed time.Duration) {
	fmt.Printf("\nExported %d messages to %s in %s", count, path, elapsed.Round(time.Millisecond))
	if secs := elapsed.Seconds(); secs > 0 && count > 0 {
		fmt.Printf(" (%.1f msg/s)", float64(count)/secs)
	}
	fmt.Println()
}

// printCapWarning tells the user the result limit truncated the export and
// how to get the rest.
func printCapWarning(count int, chunked bool) {
	fmt.Println("\nWARNING: result limit reached!")
	fmt.Printf("Exported %d messages, but there may be more.\n", count)
	if !chunked {
		fmt.Println("To get complete history, re-run with --monthly-chunks, or raise --max-results.")
	} else {
		fmt.Println("Raise --max-results to get the rest.")
	}
}

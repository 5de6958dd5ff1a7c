package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/slack-export/pkg/paginate"
	"github.com/Sternrassler/slack-export/pkg/sink"
)

var (
	searchQuery     string
	searchMax       int
	searchPageSize  int
	searchChunked   bool
	searchStartDate string
	searchEndDate   string
	searchOutput    string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Export messages matching a search query",
	Long: `Export all messages matching a Slack search query.

Queries use Slack's search syntax: from:@user, in:#channel, has:attachment,
after:/before: date bounds, plus free text. Broad queries can exceed what a
single search returns; --monthly-chunks splits the time range into calendar
months and merges the results.`,
	Example: `  slack-export search -q "from:@john.smith" --monthly-chunks -o messages.md
  slack-export search -q "in:#general deploy" -m 500 -o deploys.json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Slack search query (required)")
	searchCmd.Flags().IntVarP(&searchMax, "max-results", "m", 0, "maximum messages to export (default from config)")
	searchCmd.Flags().IntVar(&searchPageSize, "page-size", 0, "results per API request (default from config)")
	searchCmd.Flags().BoolVar(&searchChunked, "monthly-chunks", false, "search month by month for complete history")
	searchCmd.Flags().StringVar(&searchStartDate, "start-date", "", "chunked range start, YYYY-MM-DD (default 2 years ago)")
	searchCmd.Flags().StringVar(&searchEndDate, "end-date", "", "chunked range end, YYYY-MM-DD (default today)")
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "", "output file: .md, .json or .jsonl (default slack_search_<timestamp>.md)")
	_ = searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}

	maxResults := searchMax
	if maxResults == 0 {
		maxResults = cfg.Fetch.MaxResults
	}
	pageSize := searchPageSize
	if pageSize == 0 {
		pageSize = cfg.Fetch.PageSize
	}
	chunked := searchChunked || cfg.Fetch.ChunkMonths

	start := time.Now()

	// A failed fetch still yields the records accumulated so far; they are
	// flushed below instead of being thrown away.
	var records []paginate.Record
	var fetchErr error
	hitCap := false
	if chunked {
		window, err := parseRange(searchStartDate, searchEndDate)
		if err != nil {
			return err
		}
		records, fetchErr = svc.SearchMessagesChunked(ctx, searchQuery, paginate.ChunkedOptions{
			Range:        window,
			PerWindowCap: cfg.Fetch.PerWindowCap,
			OverallCap:   maxResults,
			PageSize:     pageSize,
		})
	} else {
		res, err := svc.SearchMessages(ctx, searchQuery, paginate.Options{
			PageSize: pageSize,
			Cap:      maxResults,
		})
		fetchErr = err
		records = res.Records
		hitCap = res.HitCap
	}
	if fetchErr != nil && len(records) == 0 {
		return fetchErr
	}

	path := searchOutput
	if path == "" {
		path = defaultOutputPath("search")
	}
	if err := exportRecords(ctx, svc, records, path, "Slack Search Results", fetchErr != nil,
		sink.Metadata{Key: "Search query", Value: searchQuery}); err != nil {
		return err
	}

	printSummary(len(records), path, time.Since(start))
	if fetchErr != nil {
		printPartialNote(len(records), path, fetchErr)
		return fetchErr
	}
	if hitCap || (chunked && maxResults > 0 && len(records) >= maxResults) {
		printCapWarning(len(records), chunked)
	}
	return nil
}

// parseRange builds the chunked time window from the optional date flags.
// A zero window means the default range (the last two years).
func parseRange(startDate, endDate string) (paginate.TimeWindow, error) {
	var window paginate.TimeWindow
	if startDate == "" && endDate == "" {
		return window, nil
	}

	now := time.Now().UTC()
	window = paginate.DefaultRange(now)
	if startDate != "" {
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return window, fmt.Errorf("invalid --start-date %q: %w", startDate, err)
		}
		window.Start = start
	}
	if endDate != "" {
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return window, fmt.Errorf("invalid --end-date %q: %w", endDate, err)
		}
		window.End = end
	}
	if window.End.Before(window.Start) {
		return window, fmt.Errorf("--end-date %s is before --start-date %s",
			window.End.Format("2006-01-02"), window.Start.Format("2006-01-02"))
	}
	return window, nil
}

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/slack-export/pkg/paginate"
	"github.com/Sternrassler/slack-export/pkg/sink"
	"github.com/Sternrassler/slack-export/pkg/slack"
)

var (
	historySince  string
	historyMax    int
	historyOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history <channel-id>",
	Short: "Export a conversation's full history",
	Long: `Export every message of one conversation (channel, group or DM),
newest first. Messages are written to the output file as they arrive, so an
interrupted export keeps everything fetched up to that point.

Use "slack-export list" to find conversation IDs.`,
	Example: `  slack-export history D0123456789 -o dm.md
  slack-export history C0123456789 --since 2024-01-01 -o channel.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historySince, "since", "", "only messages on or after this date, YYYY-MM-DD")
	historyCmd.Flags().IntVarP(&historyMax, "max-results", "m", 0, "maximum messages to export (0 = all)")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "", "output file: .md, .json or .jsonl (default slack_history_<timestamp>.md)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}

	channelID := args[0]
	opts := slack.HistoryOptions{Cap: historyMax}
	if historySince != "" {
		since, err := time.Parse("2006-01-02", historySince)
		if err != nil {
			return fmt.Errorf("invalid --since %q: %w", historySince, err)
		}
		opts.Oldest = strconv.FormatInt(since.Unix(), 10) + ".000000"
	}

	path := historyOutput
	if path == "" {
		path = defaultOutputPath("history")
	}
	out, err := openSink(path, "Slack Conversation History",
		sink.Metadata{Key: "Channel", Value: channelID})
	if err != nil {
		return err
	}

	start := time.Now()
	count, hitCap, err := svc.StreamHistory(ctx, channelID, opts, &enrichingSink{
		ctx: ctx,
		svc: svc,
		out: out,
	})
	if err != nil {
		// Keep what made it to disk readable.
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	printSummary(count, path, time.Since(start))
	if hitCap {
		fmt.Println("\nWARNING: result limit reached, raise --max-results for the full history.")
	}
	return nil
}

// enrichingSink resolves names on each message before it reaches the output
// file, keeping the export a single streaming pass.
type enrichingSink struct {
	ctx context.Context
	svc *slack.Service
	out sink.Sink
}

func (s *enrichingSink) Write(rec paginate.Record) error {
	s.svc.Enrich(s.ctx, []paginate.Record{rec})
	return s.out.Write(rec)
}

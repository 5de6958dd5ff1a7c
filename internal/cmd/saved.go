package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/slack-export/pkg/paginate"
)

var (
	savedMax    int
	savedOutput string
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Export messages saved for later",
	Long:  `Export the messages in the token owner's "Later" list.`,
	RunE:  runSaved,
}

func init() {
	rootCmd.AddCommand(savedCmd)

	savedCmd.Flags().IntVarP(&savedMax, "max-results", "m", 0, "maximum messages to export (default from config)")
	savedCmd.Flags().StringVarP(&savedOutput, "output", "o", "", "output file: .md, .json or .jsonl (default slack_saved_<timestamp>.md)")
}

func runSaved(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}

	maxResults := savedMax
	if maxResults == 0 {
		maxResults = cfg.Fetch.MaxResults
	}

	start := time.Now()
	res, fetchErr := svc.SavedMessages(ctx, paginate.Options{
		PageSize: cfg.Fetch.PageSize,
		Cap:      maxResults,
	})
	if fetchErr != nil && len(res.Records) == 0 {
		return fetchErr
	}

	path := savedOutput
	if path == "" {
		path = defaultOutputPath("saved")
	}
	if err := exportRecords(ctx, svc, res.Records, path, "Slack Saved Messages", fetchErr != nil); err != nil {
		return err
	}

	printSummary(len(res.Records), path, time.Since(start))
	if fetchErr != nil {
		printPartialNote(len(res.Records), path, fetchErr)
		return fetchErr
	}
	if res.HitCap {
		printCapWarning(len(res.Records), false)
	}
	return nil
}

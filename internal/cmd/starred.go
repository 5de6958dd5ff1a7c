package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/slack-export/pkg/paginate"
)

var (
	starredMax    int
	starredOutput string
)

var starredCmd = &cobra.Command{
	Use:   "starred",
	Short: "Export starred messages",
	Long: `Export the token owner's starred messages. Starred files and
channels are skipped; only message stars are exported.`,
	RunE: runStarred,
}

func init() {
	rootCmd.AddCommand(starredCmd)

	starredCmd.Flags().IntVarP(&starredMax, "max-results", "m", 0, "maximum messages to export (default from config)")
	starredCmd.Flags().StringVarP(&starredOutput, "output", "o", "", "output file: .md, .json or .jsonl (default slack_starred_<timestamp>.md)")
}

func runStarred(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}

	maxResults := starredMax
	if maxResults == 0 {
		maxResults = cfg.Fetch.MaxResults
	}

	start := time.Now()
	res, fetchErr := svc.StarredMessages(ctx, paginate.Options{
		PageSize: cfg.Fetch.PageSize,
		Cap:      maxResults,
	})
	if fetchErr != nil && len(res.Records) == 0 {
		return fetchErr
	}

	path := starredOutput
	if path == "" {
		path = defaultOutputPath("starred")
	}
	if err := exportRecords(ctx, svc, res.Records, path, "Slack Starred Messages", fetchErr != nil); err != nil {
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

package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listDMsOnly bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations visible to the token",
	Long: `List every conversation the token can see: public and private
channels, group DMs and direct messages, with the IDs the history command
takes.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listDMsOnly, "dms", false, "only direct messages")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}

	convs, err := svc.ListConversations(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Type", "Name", "Created"})
	for _, c := range convs {
		if listDMsOnly && !c.IsIM {
			continue
		}
		name := c.Name
		if name == "" && c.User != "" {
			name = c.User
		}
		created := ""
		if c.Created > 0 {
			created = time.Unix(c.Created, 0).UTC().Format("2006-01-02")
		}
		t.AppendRow(table.Row{c.ID, c.Type(), name, created})
	}
	t.Render()
	return nil
}

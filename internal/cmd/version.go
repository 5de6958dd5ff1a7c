package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version info set by the main package at build time.
var versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SetVersionInfo is called by main to inject the build's version details.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("slack-export %s\n", versionInfo.Version)
		if versionInfo.Commit != "" {
			fmt.Printf("Commit: %s\n", versionInfo.Commit)
		}
		if versionInfo.BuildDate != "" {
			fmt.Printf("Built: %s\n", versionInfo.BuildDate)
		}
		fmt.Printf("Go: %s\n", runtime.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Package cmd implements the slack-export command-line interface, one file
// per subcommand.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/slack-export/internal/config"
	"github.com/Sternrassler/slack-export/pkg/client"
	"github.com/Sternrassler/slack-export/pkg/logging"
	"github.com/Sternrassler/slack-export/pkg/ratelimit"
	"github.com/Sternrassler/slack-export/pkg/slack"
)

var (
	cfgFile string
	verbose bool

	// cfg is populated by initConfig before any subcommand runs.
	cfg *config.Config

	appViper = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "slack-export",
	Short: "Export Slack messages via the Web API",
	Long: `slack-export retrieves messages from a Slack workspace using a user
OAuth token: search results, saved ("Later") messages, starred messages and
full channel histories. Results are written incrementally to Markdown, JSON
or line-delimited JSON files.

The token is taken from --token, the SLACK_TOKEN environment variable, or
the config file, in that order of precedence.`,
	SilenceUsage: true,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./slack-export.yaml)")
	rootCmd.PersistentFlags().StringP("token", "t", "", "Slack user OAuth token (xoxp-...)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = appViper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}

func initConfig() {
	c, err := config.Load(appViper, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	cfg = c

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})
}

// newService wires the rate governor, the API client and the endpoint
// bindings from the loaded configuration.
func newService() (*slack.Service, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("no Slack token: pass --token or set SLACK_TOKEN")
	}

	logger := logging.NewLogger("ratelimit")
	governor := ratelimit.NewGovernor(logger, ratelimit.WithMinInterval(cfg.HTTP.MinInterval))

	clientCfg := client.DefaultConfig(cfg.Token)
	clientCfg.Timeout = cfg.HTTP.Timeout
	clientCfg.BulkTimeout = cfg.HTTP.BulkTimeout
	clientCfg.MaxRetries = cfg.HTTP.MaxRetries

	api, err := client.New(clientCfg, governor, logging.NewLogger("client"))
	if err != nil {
		return nil, err
	}
	return slack.NewService(api), nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, so an
// interrupted export closes its output file cleanly instead of dying
// mid-write.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Package cmd provides the command-line interface for prwatch.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/danielolaszy/prwatch/internal/config"
	"github.com/danielolaszy/prwatch/internal/logging"
)

var (
	// cfg is loaded once per invocation, before any command runs.
	cfg      *config.Config
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "prwatch",
	Short: "prwatch classifies recent pull requests and reports them to chat",
	Long: `prwatch polls GitHub repositories for pull requests merged or opened within
a time window, asks a language model to describe and rate each one, and posts
the results plus a summary to Discord, Slack or WhatsApp.

Classifications are cached on disk, so every pull request is sent to the
model at most once.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded

		closer, err := logging.Configure(logging.LogLevel(cfg.Log.Level), logging.LogFormat(cfg.Log.Format), cfg.Log.File)
		if err != nil {
			return err
		}
		closeLog = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringArrayP("repository", "r", []string{}, "repository to scan as 'owner/repo' or 'repo' (can be specified multiple times, overrides FULL_REPO_LIST)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(whatsappCmd)
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prwatch/internal/config"
	"github.com/danielolaszy/prwatch/internal/github"
	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/internal/notify"
	"github.com/danielolaszy/prwatch/internal/pipeline"
)

// issuesCmd announces newly filed issues.
var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Post issues opened within the window",
	Long: `Post one message per issue opened within the window in any configured
repository. Messages go to ISSUES_DISCORD_WEBHOOK_URL when it is set and to
DISCORD_WEBHOOK_URL otherwise, plus Slack and WhatsApp when configured.`,
	RunE: runIssues,
}

func init() {
	issuesCmd.Flags().Duration("window", time.Hour, "how far back to look for new issues")
	issuesCmd.Flags().Int("workers", 4, "number of repositories checked concurrently")
	issuesCmd.Flags().Bool("dry-run", false, "print messages to stdout instead of sending them")
}

func runIssues(cmd *cobra.Command, args []string) error {
	flagged, err := cmd.Flags().GetStringArray("repository")
	if err != nil {
		return err
	}
	if err := config.Validate(cfg, flagged); err != nil {
		return err
	}

	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scan.RunTimeout)
	defer cancel()

	githubClient, err := github.NewClient(cfg.GitHub)
	if err != nil {
		return fmt.Errorf("failed to initialize github client: %w", err)
	}

	webhook := cfg.Discord.IssuesWebhookURL
	if webhook == "" {
		webhook = cfg.Discord.WebhookURL
	}
	notifiers, closeNotifiers, err := buildNotifiers(ctx, cfg, webhook, dryRun, cmd.OutOrStdout())
	defer closeNotifiers()
	if err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}

	repos, err := resolveRepositories(ctx, githubClient, cfg.GitHub, flagged)
	if err != nil {
		return err
	}

	scanner := pipeline.NewIssueScanner(githubClient, notify.NewDispatcher(deliveryPolicy, notifiers...),
		cfg.Scan.Window, cfg.Scan.Workers, nil)
	report := scanner.Run(ctx, repos)

	logging.Info("issue check complete",
		"repositories", report.Repositories,
		"notified", report.Notified,
		"failures", report.FailureCount())

	if report.Failures != nil {
		return fmt.Errorf("issue check finished with %d failures: %w", report.FailureCount(), report.Failures)
	}
	return nil
}

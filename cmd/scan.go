package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prwatch/internal/cache"
	"github.com/danielolaszy/prwatch/internal/classifier"
	"github.com/danielolaszy/prwatch/internal/config"
	"github.com/danielolaszy/prwatch/internal/diff"
	"github.com/danielolaszy/prwatch/internal/github"
	"github.com/danielolaszy/prwatch/internal/llm"
	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/internal/notify"
	"github.com/danielolaszy/prwatch/internal/pipeline"
	"github.com/danielolaszy/prwatch/internal/retry"
	"github.com/danielolaszy/prwatch/internal/summarizer"
)

// scanCmd runs one polling pass over the configured repositories.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify recent pull requests and post the results",
	Long: `Scan every configured repository for pull requests merged or opened within
the window, classify each one, and post one message per pull request plus a
summary of the whole run.

Pull requests authored by dependency bots (renovate, dependabot) are skipped.
Nothing is posted when no pull request qualifies.

Example:
  prwatch scan --window 2h
  prwatch scan -r acme/widgets -r acme/gadgets --dry-run`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Duration("window", time.Hour, "how far back to look for merged or opened pull requests")
	scanCmd.Flags().Int("workers", 4, "number of repositories scanned concurrently")
	scanCmd.Flags().String("cache", cache.DefaultPath, "path of the classification cache")
	scanCmd.Flags().String("provider", llm.ProviderAnthropic, "language model provider (anthropic or openai)")
	scanCmd.Flags().Bool("dry-run", false, "print messages to stdout instead of sending them")
}

func runScan(cmd *cobra.Command, args []string) error {
	flagged, err := cmd.Flags().GetStringArray("repository")
	if err != nil {
		return err
	}
	if err := config.Validate(cfg, flagged); err != nil {
		return err
	}
	if err := config.ValidateLLMConfig(cfg); err != nil {
		return err
	}

	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scan.RunTimeout)
	defer cancel()

	store, err := cache.Open(cfg.Cache.Driver, cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("failed to open classification cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("failed to close classification cache", "error", err)
		}
	}()

	completer, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey(),
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL(),
		Retry: retry.Policy{
			Attempts: cfg.LLM.MaxAttempts,
			Delay:    retry.DefaultPolicy.Delay,
			MaxDelay: retry.DefaultPolicy.MaxDelay,
			Timeout:  cfg.LLM.Timeout,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize llm client: %w", err)
	}

	githubClient, err := github.NewClient(cfg.GitHub)
	if err != nil {
		return fmt.Errorf("failed to initialize github client: %w", err)
	}

	notifiers, closeNotifiers, err := buildNotifiers(ctx, cfg, cfg.Discord.WebhookURL, dryRun, cmd.OutOrStdout())
	defer closeNotifiers()
	if err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}

	repos, err := resolveRepositories(ctx, githubClient, cfg.GitHub, flagged)
	if err != nil {
		return err
	}

	logging.Info("starting scan",
		"repositories", len(repos),
		"window", cfg.Scan.Window,
		"provider", cfg.LLM.Provider,
		"transports", len(notifiers))

	p := pipeline.New(store,
		classifier.New(completer, classifier.Options{
			DiffBudget: cfg.LLM.DiffCharBudget,
			MaxTokens:  cfg.LLM.MaxTokens,
		}),
		diff.Reducer{MaxLinesPerFile: cfg.LLM.DiffMaxLinesPerFile})

	scanner := pipeline.NewScanner(githubClient, p,
		summarizer.New(completer, summarizer.Options{
			MaxBatch:       cfg.LLM.SummaryMaxBatch,
			MaxPromptChars: cfg.LLM.SummaryMaxChars,
			MaxTokens:      cfg.LLM.MaxTokens,
		}),
		notify.NewDispatcher(deliveryPolicy, notifiers...),
		pipeline.ScanOptions{
			Window:         cfg.Scan.Window,
			Workers:        cfg.Scan.Workers,
			RequestWorkers: cfg.Scan.RequestWorkers,
			Bots:           pipeline.NewBotFilter(cfg.Scan.BotMarkers),
		})

	report := scanner.Run(ctx, repos)

	logging.Info("scan complete",
		"repositories", report.Repositories,
		"candidates", report.Candidates,
		"skipped_bots", report.SkippedBots,
		"analyzed", len(report.Analyzed),
		"failures", report.FailureCount())

	if report.Failures != nil {
		return fmt.Errorf("scan finished with %d failures: %w", report.FailureCount(), report.Failures)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danielolaszy/prwatch/internal/config"
	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/internal/notify"
	"github.com/danielolaszy/prwatch/internal/retry"
)

// deliveryPolicy retries each transport a few times with short per-call timeouts.
var deliveryPolicy = retry.Policy{
	Attempts: 3,
	Delay:    time.Second,
	MaxDelay: 10 * time.Second,
	Timeout:  30 * time.Second,
}

// RepositoryLister enumerates the repositories of an organization.
type RepositoryLister interface {
	ListRepositories(ctx context.Context, org string) ([]string, error)
}

// resolveRepositories picks the repositories to scan: the -r flags when
// given, otherwise FULL_REPO_LIST, listing the organization for "all".
func resolveRepositories(ctx context.Context, lister RepositoryLister, gh config.GitHubConfig, flagged []string) ([]string, error) {
	if len(flagged) > 0 {
		gh.RepoList = strings.Join(flagged, ",")
		return gh.RepositoryNames(), nil
	}
	if gh.AllRepositories() {
		repos, err := lister.ListRepositories(ctx, gh.Org)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", gh.Org, err)
		}
		return repos, nil
	}
	return gh.RepositoryNames(), nil
}

// buildNotifiers creates the transports for one run. A dry run prints to out
// and touches no chat service. The returned func releases transport resources.
func buildNotifiers(ctx context.Context, config *config.Config, discordWebhook string, dryRun bool, out io.Writer) ([]notify.Notifier, func(), error) {
	if dryRun {
		logging.Info("dry run, printing messages instead of sending them")
		return []notify.Notifier{notify.NewWriter(out)}, func() {}, nil
	}

	var (
		notifiers []notify.Notifier
		closers   []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if discordWebhook != "" {
		d, err := notify.NewDiscord(discordWebhook)
		if err != nil {
			return nil, closeAll, err
		}
		notifiers = append(notifiers, d)
	}

	if config.Slack.SlackEnabled() {
		notifiers = append(notifiers, notify.NewSlack(config.Slack.Token, config.Slack.ChannelID))
	} else if config.Slack.Token != "" {
		logging.Warn("SLACK_BOT_TOKEN is set but SLACK_CHANNEL_ID is not, slack notifications disabled")
	}

	if config.WhatsApp.Recipient != "" {
		wa, err := notify.NewWhatsApp(ctx, notify.WhatsAppConfig{
			StoreDSN:   config.WhatsApp.StoreDSN,
			Recipient:  config.WhatsApp.Recipient,
			DeviceName: config.WhatsApp.DeviceName,
		})
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() {
			if err := wa.Close(); err != nil {
				logging.Warn("failed to close whatsapp store", "error", err)
			}
		})
		notifiers = append(notifiers, wa)
	}

	if len(notifiers) == 0 {
		logging.Warn("no notification transport configured, results will only be logged")
	}
	return notifiers, closeAll, nil
}

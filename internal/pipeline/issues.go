package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/internal/notify"
	"github.com/danielolaszy/prwatch/pkg/models"
)

// IssueSource lists recently filed issues of a repository.
type IssueSource interface {
	RecentIssues(ctx context.Context, repo string, since time.Time) ([]models.Issue, error)
}

// IssueReport describes an issue notification run.
type IssueReport struct {
	Repositories int
	Notified     int
	Failures     error
}

// FailureCount returns the number of isolated failures.
func (r IssueReport) FailureCount() int {
	return len(multierr.Errors(r.Failures))
}

// IssueScanner announces issues filed inside the window.
type IssueScanner struct {
	source   IssueSource
	notifier Broadcaster
	window   time.Duration
	workers  int
	now      func() time.Time
}

// NewIssueScanner creates an IssueScanner. now may be nil.
func NewIssueScanner(source IssueSource, notifier Broadcaster, window time.Duration, workers int, now func() time.Time) *IssueScanner {
	if window <= 0 {
		window = time.Hour
	}
	if workers <= 0 {
		workers = 4
	}
	if now == nil {
		now = time.Now
	}
	return &IssueScanner{source: source, notifier: notifier, window: window, workers: workers, now: now}
}

// Run fetches issues of every repository concurrently and notifies about
// them in repository order.
func (s *IssueScanner) Run(ctx context.Context, repos []string) IssueReport {
	since := s.now().Add(-s.window)
	report := IssueReport{Repositories: len(repos)}

	var errs failures
	found := make([][]models.Issue, len(repos))

	p := pool.New().WithMaxGoroutines(s.workers)
	for i, repo := range repos {
		p.Go(func() {
			logging.Info("checking issues", "repository", repo)
			issues, err := s.source.RecentIssues(ctx, repo, since)
			if err != nil {
				errs.add(err)
				return
			}
			found[i] = issues
		})
	}
	p.Wait()

	for i, issues := range found {
		for _, issue := range issues {
			if err := s.notifier.Broadcast(ctx, notify.IssueMessage(repos[i], issue)); err != nil {
				errs.add(fmt.Errorf("failed to notify %s#%d: %w", repos[i], issue.Number, err))
				continue
			}
			report.Notified++
		}
	}

	report.Failures = errs.err
	return report
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/internal/notify"
	"github.com/danielolaszy/prwatch/pkg/models"
)

// Source lists recent change requests of a repository.
type Source interface {
	MergedPullRequests(ctx context.Context, repo string, since time.Time) ([]models.ChangeRequest, error)
	OpenedPullRequests(ctx context.Context, repo string, since time.Time) ([]models.ChangeRequest, error)
}

// Summarizer condenses a batch of results.
type Summarizer interface {
	Summarize(ctx context.Context, requests []models.AnalyzedChangeRequest) (string, error)
}

// Broadcaster delivers a message to every chat transport.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) error
}

// ScanOptions tunes a Scanner. Zero values fall back to defaults.
type ScanOptions struct {
	Window         time.Duration
	Workers        int
	RequestWorkers int
	Bots           BotFilter
	Now            func() time.Time
}

// Report describes what a run did and which parts of it failed.
type Report struct {
	Repositories int
	Candidates   int
	SkippedBots  int
	Analyzed     []models.AnalyzedChangeRequest
	Summary      string
	// Failures combines every isolated error of the run.
	Failures error
}

// FailureCount returns the number of isolated failures.
func (r Report) FailureCount() int {
	return len(multierr.Errors(r.Failures))
}

// Scanner runs one polling pass over a set of repositories.
type Scanner struct {
	source     Source
	pipeline   *Pipeline
	summarizer Summarizer
	notifier   Broadcaster
	opts       ScanOptions
}

// NewScanner creates a Scanner.
func NewScanner(source Source, p *Pipeline, summarizer Summarizer, notifier Broadcaster, opts ScanOptions) *Scanner {
	if opts.Window <= 0 {
		opts.Window = time.Hour
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.RequestWorkers <= 0 {
		opts.RequestWorkers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scanner{source: source, pipeline: p, summarizer: summarizer, notifier: notifier, opts: opts}
}

type candidate struct {
	req   models.ChangeRequest
	state models.Lifecycle
}

// failures collects errors from concurrent workers.
type failures struct {
	mu  sync.Mutex
	err error
}

func (f *failures) add(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = multierr.Append(f.err, err)
}

// Run scans repos, notifies about each classified request in repository
// order (merged before opened), then sends one summary. Nothing is sent when
// no request qualified. Failures of single repositories, requests or
// deliveries are collected in the report and never stop the run.
func (s *Scanner) Run(ctx context.Context, repos []string) Report {
	since := s.opts.Now().Add(-s.opts.Window)
	report := Report{Repositories: len(repos)}

	var (
		errs    failures
		mu      sync.Mutex
		results = make([][]models.AnalyzedChangeRequest, len(repos))
	)

	p := pool.New().WithMaxGoroutines(s.opts.Workers)
	for i, repo := range repos {
		p.Go(func() {
			analyzed, candidates, skipped := s.scanRepository(ctx, repo, since, &errs)
			results[i] = analyzed

			mu.Lock()
			report.Candidates += candidates
			report.SkippedBots += skipped
			mu.Unlock()
		})
	}
	p.Wait()

	for _, r := range results {
		report.Analyzed = append(report.Analyzed, r...)
	}

	for _, a := range report.Analyzed {
		if err := s.notifier.Broadcast(ctx, notify.ChangeRequestMessage(a)); err != nil {
			errs.add(fmt.Errorf("failed to notify %s#%d: %w", a.Repository, a.Number, err))
		}
	}

	if len(report.Analyzed) == 0 {
		logging.Info("no opened or merged pull requests in window, no messages sent", "window", s.opts.Window)
		report.Failures = errs.err
		return report
	}

	summary, err := s.summarizer.Summarize(ctx, report.Analyzed)
	if err != nil {
		errs.add(err)
	} else {
		report.Summary = summary
		if err := s.notifier.Broadcast(ctx, notify.SummaryMessage(summary, report.Analyzed, s.opts.Window)); err != nil {
			errs.add(fmt.Errorf("failed to send summary: %w", err))
		}
	}

	report.Failures = errs.err
	return report
}

// scanRepository fetches and processes one repository. The returned slice
// keeps merged requests before opened ones, each in forge order.
func (s *Scanner) scanRepository(ctx context.Context, repo string, since time.Time, errs *failures) ([]models.AnalyzedChangeRequest, int, int) {
	logging.Info("analyzing repository", "repository", repo, "since", since.Format(time.RFC3339))

	var candidates []candidate
	merged, err := s.source.MergedPullRequests(ctx, repo, since)
	if err != nil {
		errs.add(err)
	}
	for _, req := range merged {
		candidates = append(candidates, candidate{req: req, state: models.LifecycleMerged})
	}
	opened, err := s.source.OpenedPullRequests(ctx, repo, since)
	if err != nil {
		errs.add(err)
	}
	for _, req := range opened {
		candidates = append(candidates, candidate{req: req, state: models.LifecycleOpened})
	}

	kept := candidates[:0]
	skipped := 0
	for _, c := range candidates {
		if s.opts.Bots.IsBot(c.req.Author) {
			logging.Debug("skipping bot pull request", "repository", repo, "pr_number", c.req.Number, "author", c.req.Author)
			skipped++
			continue
		}
		kept = append(kept, c)
	}

	slots := make([]*models.AnalyzedChangeRequest, len(kept))
	p := pool.New().WithMaxGoroutines(s.opts.RequestWorkers)
	for i, c := range kept {
		p.Go(func() {
			a, err := s.pipeline.Process(ctx, repo, c.req, c.state)
			if err != nil {
				errs.add(err)
				if !IsCacheWriteError(err) {
					logging.Error("failed to analyze pull request", "repository", repo, "pr_number", c.req.Number, "error", err)
					return
				}
			}
			slots[i] = &a
		})
	}
	p.Wait()

	var analyzed []models.AnalyzedChangeRequest
	for _, a := range slots {
		if a != nil {
			analyzed = append(analyzed, *a)
		}
	}
	return analyzed, len(candidates), skipped
}

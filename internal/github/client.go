// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/prwatch/internal/config"
	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/internal/retry"
	"github.com/danielolaszy/prwatch/pkg/models"
)

const perPage = 100

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
	policy retry.Policy
}

// NewClient creates a GitHub API client for the configured domain. A token
// is optional; without one only public data is visible and rate limits are low.
func NewClient(cfg config.GitHubConfig) (*Client, error) {
	domain := cfg.Domain
	if domain == "" {
		domain = "github.com"
	}
	apiURL := APIURL(domain)

	logging.Info("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(cfg.Token))

	httpClient := http.DefaultClient
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(httpClient)
	if domain != "github.com" {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	policy := retry.DefaultPolicy
	if cfg.Timeout > 0 {
		policy.Timeout = cfg.Timeout
	}
	return &Client{client: client, policy: policy}, nil
}

// APIURL returns the REST endpoint for a GitHub or GitHub Enterprise domain.
func APIURL(domain string) string {
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// ListRepositories returns the full names of every public repository in org,
// most recently updated first.
func (c *Client) ListRepositories(ctx context.Context, org string) ([]string, error) {
	opts := &github.RepositoryListByOrgOptions{
		Type: "public",
		Sort: "updated",
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	var names []string
	for {
		var (
			repos []*github.Repository
			resp  *github.Response
		)
		err := c.do(ctx, "list repositories", func(ctx context.Context) error {
			var err error
			repos, resp, err = c.client.Repositories.ListByOrg(ctx, org, opts)
			return classify(resp, err)
		})
		if err != nil {
			logging.Error("failed to list github repositories", "org", org, "error", err)
			return nil, fmt.Errorf("failed to list repositories for %s: %w", org, err)
		}

		for _, r := range repos {
			names = append(names, r.GetFullName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logging.Debug("listed github repositories", "org", org, "count", len(names))
	return names, nil
}

// MergedPullRequests returns pull requests in repo merged at or after since,
// with their diffs.
func (c *Client) MergedPullRequests(ctx context.Context, repository string, since time.Time) ([]models.ChangeRequest, error) {
	opts := &github.PullRequestListOptions{
		State:     "closed",
		Sort:      "updated",
		Direction: "desc",
	}
	keep := func(pr *github.PullRequest) (bool, bool) {
		if pr.GetUpdatedAt().Before(since) {
			return false, true
		}
		return pr.MergedAt != nil && !pr.GetMergedAt().Before(since), false
	}
	return c.pullRequests(ctx, repository, opts, keep)
}

// OpenedPullRequests returns open pull requests in repo created at or after
// since, with their diffs.
func (c *Client) OpenedPullRequests(ctx context.Context, repository string, since time.Time) ([]models.ChangeRequest, error) {
	opts := &github.PullRequestListOptions{
		State:     "open",
		Sort:      "created",
		Direction: "desc",
	}
	keep := func(pr *github.PullRequest) (bool, bool) {
		if pr.GetCreatedAt().Before(since) {
			return false, true
		}
		return true, false
	}
	return c.pullRequests(ctx, repository, opts, keep)
}

// pullRequests pages through a sorted listing. keep reports whether a pull
// request is wanted and whether the listing has moved past the window.
func (c *Client) pullRequests(ctx context.Context, repository string, opts *github.PullRequestListOptions, keep func(*github.PullRequest) (bool, bool)) ([]models.ChangeRequest, error) {
	owner, repo, err := parseRepository(repository)
	if err != nil {
		return nil, err
	}
	opts.ListOptions.PerPage = perPage

	var result []models.ChangeRequest
	for {
		var (
			prs  []*github.PullRequest
			resp *github.Response
		)
		err := c.do(ctx, "list pull requests", func(ctx context.Context) error {
			var err error
			prs, resp, err = c.client.PullRequests.List(ctx, owner, repo, opts)
			return classify(resp, err)
		})
		if err != nil {
			logging.Error("failed to fetch github pull requests", "repository", repository, "state", opts.State, "error", err)
			return nil, fmt.Errorf("failed to fetch %s pull requests for %s: %w", opts.State, repository, err)
		}

		done := false
		for _, pr := range prs {
			wanted, past := keep(pr)
			if past {
				done = true
				break
			}
			if wanted {
				result = append(result, toChangeRequest(pr))
			}
		}
		if done || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	for i := range result {
		result[i].Diff = c.diff(ctx, owner, repo, result[i].Number)
	}

	logging.Debug("fetched github pull requests", "repository", repository, "state", opts.State, "count", len(result))
	return result, nil
}

// diff fetches the unified diff of a pull request. Failures, such as diffs
// too large for the API, yield an empty diff so the request can still be
// classified from its title and body.
func (c *Client) diff(ctx context.Context, owner, repo string, number int) string {
	var text string
	err := c.do(ctx, "get pull request diff", func(ctx context.Context) error {
		var (
			resp *github.Response
			err  error
		)
		text, resp, err = c.client.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
		return classify(resp, err)
	})
	if err != nil {
		logging.Warn("failed to fetch pull request diff", "repository", owner+"/"+repo, "pr_number", number, "error", err)
		return ""
	}
	return text
}

// RecentIssues returns open issues in repo created at or after since. The
// listing is read newest first and stops at the first older entry.
// Pull requests, which the Issues API also returns, are skipped.
func (c *Client) RecentIssues(ctx context.Context, repository string, since time.Time) ([]models.Issue, error) {
	owner, repo, err := parseRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListByRepoOptions{
		State:     "open",
		Since:     since,
		Sort:      "created",
		Direction: "desc",
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	var result []models.Issue
	for {
		var (
			issues []*github.Issue
			resp   *github.Response
		)
		err := c.do(ctx, "list issues", func(ctx context.Context) error {
			var err error
			issues, resp, err = c.client.Issues.ListByRepo(ctx, owner, repo, opts)
			return classify(resp, err)
		})
		if err != nil {
			logging.Error("failed to fetch github issues", "repository", repository, "error", err)
			return nil, fmt.Errorf("failed to fetch issues for %s: %w", repository, err)
		}

		done := false
		for _, issue := range issues {
			// Newest first, so everything after this was created before the window.
			if issue.GetCreatedAt().Before(since) {
				done = true
				break
			}
			// Skip pull requests (they're also returned by the Issues API)
			if issue.PullRequestLinks != nil {
				continue
			}
			result = append(result, models.Issue{
				Number:    issue.GetNumber(),
				Title:     issue.GetTitle(),
				URL:       issue.GetHTMLURL(),
				Author:    issue.GetUser().GetLogin(),
				CreatedAt: issue.GetCreatedAt(),
			})
		}

		if done || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logging.Debug("fetched github issues", "repository", repository, "count", len(result))
	return result, nil
}

func (c *Client) do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, "github "+operation, c.policy, fn)
}

func toChangeRequest(pr *github.PullRequest) models.ChangeRequest {
	return models.ChangeRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		Author:    pr.GetUser().GetLogin(),
		URL:       pr.GetHTMLURL(),
		CreatedAt: pr.GetCreatedAt(),
		MergedAt:  pr.MergedAt,
	}
}

// classify marks client errors as permanent, except rate limiting.
func classify(resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return err
	}
	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

func parseRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielolaszy/prwatch/pkg/models"
)

const descriptionLimit = 300

// ChangeRequestMessage renders the per-request notification.
func ChangeRequestMessage(a models.AnalyzedChangeRequest) string {
	description := strings.ReplaceAll(truncateRunes(a.Description, descriptionLimit), "\n", " ")
	msg := fmt.Sprintf("[%s] %s %s PR in %s: %s\n%s",
		a.State, a.Author, a.Impact, a.Repository, a.URL, description)
	return strings.TrimSpace(msg)
}

// SummaryMessage renders the end-of-run summary with per-state counts.
func SummaryMessage(summary string, analyzed []models.AnalyzedChangeRequest, window time.Duration) string {
	var merged, opened int
	for _, a := range analyzed {
		switch a.State {
		case models.LifecycleMerged:
			merged++
		case models.LifecycleOpened:
			opened++
		}
	}

	return fmt.Sprintf("Summary of changes in the last %s:\n\n%s\n\nTotal PRs: %d\nMerged: %d\nOpened: %d",
		windowPhrase(window), strings.TrimSpace(summary), len(analyzed), merged, opened)
}

// IssueMessage renders a new-issue notification with a markdown link.
func IssueMessage(repo string, issue models.Issue) string {
	return fmt.Sprintf("New issue in %s: [#%d %s](%s) by %s", repo, issue.Number, issue.Title, issue.URL, issue.Author)
}

func windowPhrase(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "hour"
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// splitMessage breaks text into parts of at most limit runes, preferring
// line boundaries.
func splitMessage(text string, limit int) []string {
	var parts []string
	r := []rune(text)
	for len(r) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			if r[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(r[:cut]), "\n"))
		r = r[cut:]
	}
	if len(r) > 0 || len(parts) == 0 {
		parts = append(parts, string(r))
	}
	return parts
}

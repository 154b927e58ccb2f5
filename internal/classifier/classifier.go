// Package classifier asks a language model for a one-line description and
// an impact tier of a change request.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/pkg/models"
)

const (
	DefaultDiffBudget = 8000
	DefaultMaxTokens  = 1000
)

const promptTemplate = `Analyze the following pull request and provide a one-line description of the change. Also, classify the impact as "Major", "Minor", or "Tiny".

Major Impact: Introduce a feature, fix a bug, improve performance, or refactor code.
Minor Impact: Minor bug fixes, easy feature additions, small improvements. Typically more than 30 lines of code changes.
Tiny Impact: Minor documentation changes, typo fixes, small cosmetic fixes, updates to dependencies.

Title: %s
Body: %s
Diff:
%s

Response format:
Description: [One-line description]
Impact: [Major/Minor/Tiny]`

// Completer is the model call the classifier depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Options bounds prompt and response size.
type Options struct {
	// DiffBudget is the maximum number of bytes of reduced diff in the prompt.
	DiffBudget int
	MaxTokens  int
}

// Classifier builds the prompt, calls the model once and parses the answer.
type Classifier struct {
	llm  Completer
	opts Options
}

// New creates a Classifier, filling zero options with defaults.
func New(llm Completer, opts Options) *Classifier {
	if opts.DiffBudget <= 0 {
		opts.DiffBudget = DefaultDiffBudget
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Classifier{llm: llm, opts: opts}
}

// BuildPrompt renders the classification prompt with the reduced diff cut to budget bytes.
func BuildPrompt(req models.ChangeRequest, reducedDiff string, budget int) string {
	return fmt.Sprintf(promptTemplate, req.Title, req.Body, truncate(reducedDiff, budget))
}

// Classify returns the model's classification of req. Output that cannot be
// parsed yields an Unclassified result rather than an error; only failures
// to reach the model are returned as errors.
func (c *Classifier) Classify(ctx context.Context, req models.ChangeRequest, reducedDiff string) (models.Classification, error) {
	prompt := BuildPrompt(req, reducedDiff, c.opts.DiffBudget)

	text, err := c.llm.Complete(ctx, prompt, c.opts.MaxTokens)
	if err != nil {
		return models.Classification{}, fmt.Errorf("failed to classify #%d: %w", req.Number, err)
	}

	cl, err := ParseResponse(text)
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		logging.Warn("model returned malformed classification",
			"pr_number", req.Number,
			"reason", malformed.Reason,
			"response", strings.TrimSpace(text))
		return models.Classification{Impact: models.ImpactUnclassified, Raw: text}, nil
	}
	if err != nil {
		return models.Classification{}, err
	}
	return cl, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Package summarizer condenses a run's classified change requests into one
// paragraph.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/pkg/models"
)

const (
	DefaultMaxBatch       = 50
	DefaultMaxPromptChars = 24000
	DefaultMaxTokens      = 1000
)

const (
	summaryHeader = "Summarize the following pull requests:\n\n"
	summaryFooter = "\n\nProvide a concise summary of the overall changes and their significance."

	partialSeparator = "\n\n"
	combineHeader    = "Combine the following partial summaries of pull requests into one concise summary of the overall changes and their significance:\n\n"
)

// Completer is the model call the summarizer depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Options bounds the size of each summary request.
type Options struct {
	MaxBatch       int
	MaxPromptChars int
	MaxTokens      int
}

// Summarizer builds summary prompts and splits large batches into chunks.
type Summarizer struct {
	llm  Completer
	opts Options
}

// New creates a Summarizer, filling zero options with defaults.
func New(llm Completer, opts Options) *Summarizer {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = DefaultMaxPromptChars
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Summarizer{llm: llm, opts: opts}
}

// BuildPrompt lists each request as "- title (impact impact): description".
func BuildPrompt(requests []models.AnalyzedChangeRequest) string {
	lines := make([]string, len(requests))
	for i, r := range requests {
		lines[i] = entry(r)
	}
	return summaryHeader + strings.Join(lines, "\n") + summaryFooter
}

func entry(r models.AnalyzedChangeRequest) string {
	return fmt.Sprintf("- %s (%s impact): %s", r.Title, r.Impact, r.Description)
}

// Summarize returns a summary of requests. An empty batch returns "" without
// calling the model. Batches larger than one chunk are summarized per chunk
// and then combined with one more call.
func (s *Summarizer) Summarize(ctx context.Context, requests []models.AnalyzedChangeRequest) (string, error) {
	if len(requests) == 0 {
		return "", nil
	}

	chunks := s.chunk(requests)
	if len(chunks) == 1 {
		return s.complete(ctx, BuildPrompt(chunks[0]))
	}

	logging.Info("summarizing in chunks", "requests", len(requests), "chunks", len(chunks))

	partials := make([]string, 0, len(chunks))
	for i, c := range chunks {
		text, err := s.complete(ctx, BuildPrompt(c))
		if err != nil {
			return "", fmt.Errorf("failed to summarize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		partials = append(partials, strings.TrimSpace(text))
	}

	return s.combine(ctx, partials)
}

// combine merges partial summaries. When they do not fit one prompt, they
// are combined in groups and the group results combined again until one
// summary remains.
func (s *Summarizer) combine(ctx context.Context, partials []string) (string, error) {
	for round := 1; ; round++ {
		groups := s.group(partials)
		if len(groups) == 1 {
			return s.complete(ctx, combineHeader+strings.Join(groups[0], partialSeparator))
		}

		logging.Info("combining partial summaries", "round", round, "partials", len(partials), "groups", len(groups))

		next := make([]string, 0, len(groups))
		for i, g := range groups {
			if len(g) == 1 {
				next = append(next, g[0])
				continue
			}
			text, err := s.complete(ctx, combineHeader+strings.Join(g, partialSeparator))
			if err != nil {
				return "", fmt.Errorf("failed to combine group %d/%d: %w", i+1, len(groups), err)
			}
			next = append(next, text)
		}
		partials = next
	}
}

// group packs partials in order into combine prompts bounded by
// MaxPromptChars. A group never closes with a single partial while more
// remain, so every round shrinks the list.
func (s *Summarizer) group(partials []string) [][]string {
	var (
		groups [][]string
		cur    []string
		size   = len(combineHeader)
	)
	for _, p := range partials {
		n := len(p)
		if len(cur) > 0 {
			n += len(partialSeparator)
		}
		if len(cur) > 1 && size+n > s.opts.MaxPromptChars {
			groups = append(groups, cur)
			cur, size = nil, len(combineHeader)
			n = len(p)
		}
		cur = append(cur, p)
		size += n
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	text, err := s.llm.Complete(ctx, prompt, s.opts.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to summarize changes: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// chunk groups requests in order so that each group has at most MaxBatch
// entries and a prompt no longer than MaxPromptChars. A single entry that
// alone exceeds the limit still forms its own chunk.
func (s *Summarizer) chunk(requests []models.AnalyzedChangeRequest) [][]models.AnalyzedChangeRequest {
	fixed := len(summaryHeader) + len(summaryFooter)

	var (
		chunks [][]models.AnalyzedChangeRequest
		cur    []models.AnalyzedChangeRequest
		size   = fixed
	)
	for _, r := range requests {
		n := len(entry(r))
		if len(cur) > 0 {
			n++ // newline separator
		}
		if len(cur) > 0 && (len(cur) >= s.opts.MaxBatch || size+n > s.opts.MaxPromptChars) {
			chunks = append(chunks, cur)
			cur, size = nil, fixed
			n = len(entry(r))
		}
		cur = append(cur, r)
		size += n
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

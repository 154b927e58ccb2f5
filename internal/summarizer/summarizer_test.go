package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prwatch/pkg/models"
)

// MockCompleter answers every prompt with a numbered summary.
type MockCompleter struct {
	Prompts []string
	Err     error
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return fmt.Sprintf(" summary %d \n", len(m.Prompts)), nil
}

func analyzed(n int) []models.AnalyzedChangeRequest {
	out := make([]models.AnalyzedChangeRequest, n)
	for i := range out {
		out[i] = models.AnalyzedChangeRequest{
			Number: i + 1,
			Title:  fmt.Sprintf("Change %d", i+1),
			Classification: models.Classification{
				Description: "does something",
				Impact:      models.ImpactMinor,
			},
		}
	}
	return out
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt(analyzed(2))

	want := "Summarize the following pull requests:\n\n" +
		"- Change 1 (Minor impact): does something\n" +
		"- Change 2 (Minor impact): does something\n\n" +
		"Provide a concise summary of the overall changes and their significance."
	assert.Equal(t, want, got)
}

func TestSummarizeEmptyBatchSkipsModel(t *testing.T) {
	mock := &MockCompleter{}
	got, err := New(mock, Options{}).Summarize(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, mock.Prompts)
}

func TestSummarizeSingleChunk(t *testing.T) {
	mock := &MockCompleter{}
	got, err := New(mock, Options{}).Summarize(context.Background(), analyzed(3))

	require.NoError(t, err)
	assert.Equal(t, "summary 1", got)
	require.Len(t, mock.Prompts, 1)
	assert.Contains(t, mock.Prompts[0], "- Change 3 (Minor impact)")
}

func TestSummarizeChunksByCount(t *testing.T) {
	mock := &MockCompleter{}
	got, err := New(mock, Options{MaxBatch: 2}).Summarize(context.Background(), analyzed(5))

	require.NoError(t, err)
	require.Len(t, mock.Prompts, 4, "three chunks plus one combining call")
	assert.Contains(t, mock.Prompts[0], "Change 2")
	assert.NotContains(t, mock.Prompts[0], "Change 3")
	assert.Contains(t, mock.Prompts[2], "Change 5")
	assert.True(t, strings.HasPrefix(mock.Prompts[3], combineHeader))
	assert.Contains(t, mock.Prompts[3], "summary 1\n\nsummary 2\n\nsummary 3")
	assert.Equal(t, "summary 4", got)
}

func TestSummarizeCombinesInRoundsWhenPartialsOverflow(t *testing.T) {
	mock := &MockCompleter{}
	limit := len(combineHeader) + len("summary 1\n\nsummary 2")
	got, err := New(mock, Options{MaxBatch: 1, MaxPromptChars: limit}).Summarize(context.Background(), analyzed(4))

	require.NoError(t, err)
	require.Len(t, mock.Prompts, 7, "four chunks, two group combines, one final combine")
	for _, p := range mock.Prompts[4:] {
		assert.True(t, strings.HasPrefix(p, combineHeader))
		assert.LessOrEqual(t, len(p), limit)
	}
	assert.Equal(t, combineHeader+"summary 1\n\nsummary 2", mock.Prompts[4])
	assert.Equal(t, combineHeader+"summary 3\n\nsummary 4", mock.Prompts[5])
	assert.Equal(t, combineHeader+"summary 5\n\nsummary 6", mock.Prompts[6])
	assert.Equal(t, "summary 7", got)
}

func TestGroupNeverLeavesLoneOversizedPartial(t *testing.T) {
	s := New(&MockCompleter{}, Options{MaxPromptChars: 10})
	partials := []string{strings.Repeat("a", 50), strings.Repeat("b", 50), strings.Repeat("c", 50)}

	groups := s.group(partials)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
}

func TestChunkByPromptSize(t *testing.T) {
	reqs := analyzed(4)
	one := len(summaryHeader) + len(summaryFooter) + len(entry(reqs[0]))
	s := New(&MockCompleter{}, Options{MaxPromptChars: one + len(entry(reqs[1])) + 1})

	chunks := s.chunk(reqs)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(BuildPrompt(c)), s.opts.MaxPromptChars)
	}
}

func TestChunkOversizedEntryStandsAlone(t *testing.T) {
	reqs := analyzed(2)
	reqs[0].Description = strings.Repeat("x", 500)
	s := New(&MockCompleter{}, Options{MaxPromptChars: 200})

	chunks := s.chunk(reqs)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0][0].Number)
	assert.Equal(t, 2, chunks[1][0].Number)
}

func TestSummarizeError(t *testing.T) {
	mock := &MockCompleter{Err: errors.New("overloaded")}
	_, err := New(mock, Options{}).Summarize(context.Background(), analyzed(1))

	assert.ErrorContains(t, err, "overloaded")
}

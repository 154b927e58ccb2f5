package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prwatch/pkg/models"
)

// MockCompleter records prompts and returns a canned reply.
type MockCompleter struct {
	Reply   string
	Err     error
	Prompts []string
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Reply, m.Err
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantImpact  models.Impact
		wantDesc    string
		wantErrPart string
	}{
		{
			name:       "canonical",
			text:       "Description: Adds retry logic to uploads\nImpact: Minor",
			wantImpact: models.ImpactMinor,
			wantDesc:   "Adds retry logic to uploads",
		},
		{
			name:       "extra whitespace and case",
			text:       "  description :   Fix typo in README  \n\n   IMPACT:   tiny   ",
			wantImpact: models.ImpactTiny,
			wantDesc:   "Fix typo in README",
		},
		{
			name:       "markdown emphasis",
			text:       "**Description:** Rewrites the scheduler\n**Impact:** **Major**",
			wantImpact: models.ImpactMajor,
			wantDesc:   "Rewrites the scheduler",
		},
		{
			name:       "brackets and trailing prose",
			text:       "Description: Bumps lodash\nImpact: [Tiny] - dependency update only",
			wantImpact: models.ImpactTiny,
			wantDesc:   "Bumps lodash",
		},
		{
			name:       "repeated labels",
			text:       "Description: Description: Adds dark mode\nImpact: Impact: Major",
			wantImpact: models.ImpactMajor,
			wantDesc:   "Adds dark mode",
		},
		{
			name:       "preamble before answer",
			text:       "Here is my analysis.\n\nDescription: Speeds up parsing\nImpact: Major\n",
			wantImpact: models.ImpactMajor,
			wantDesc:   "Speeds up parsing",
		},
		{
			name:       "single line",
			text:       "Description: Renames a variable Impact: Tiny",
			wantImpact: models.ImpactTiny,
			wantDesc:   "Renames a variable",
		},
		{
			name:       "no description label",
			text:       "Impact: Minor",
			wantImpact: models.ImpactMinor,
			wantDesc:   "",
		},
		{
			name:        "missing impact",
			text:        "Description: Adds a thing",
			wantErrPart: "missing Impact label",
		},
		{
			name:        "unknown tier",
			text:        "Description: Adds a thing\nImpact: Huge",
			wantErrPart: "unknown impact",
		},
		{
			name:        "template echo",
			text:        "Description: Adds a thing\nImpact: [Major/Minor/Tiny]",
			wantErrPart: "unknown impact",
		},
		{
			name:        "negated tier",
			text:        "Description: Adds a thing\nImpact: Not Major, unclear",
			wantErrPart: "unknown impact",
		},
		{
			name:        "hedged between tiers",
			text:        "Description: Adds a thing\nImpact: Hard to say; somewhere between Tiny and Major",
			wantErrPart: "unknown impact",
		},
		{
			name:        "tier inside prose",
			text:        "Description: Adds a thing\nImpact: Unknown (could be Minor)",
			wantErrPart: "unknown impact",
		},
		{
			name:        "two tiers",
			text:        "Description: Adds a thing\nImpact: Minor or Major",
			wantErrPart: "unknown impact",
		},
		{
			name:       "tier repeated in prose",
			text:       "Description: Fixes a typo\nImpact: Tiny (a tiny docs change)",
			wantImpact: models.ImpactTiny,
			wantDesc:   "Fixes a typo",
		},
		{
			name:        "empty",
			text:        "",
			wantErrPart: "missing Impact label",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.text)
			if tt.wantErrPart != "" {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
				assert.Contains(t, malformed.Reason, tt.wantErrPart)
				assert.Equal(t, tt.text, malformed.Raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantImpact, got.Impact)
			assert.Equal(t, tt.wantDesc, got.Description)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	req := models.ChangeRequest{Number: 1, Title: "Add cache", Body: "Speeds things up"}
	prompt := BuildPrompt(req, strings.Repeat("x", 50), 10)

	assert.Contains(t, prompt, "Title: Add cache\n")
	assert.Contains(t, prompt, "Body: Speeds things up\n")
	assert.Contains(t, prompt, "Diff:\nxxxxxxxxxx\n")
	assert.NotContains(t, prompt, strings.Repeat("x", 11))
	assert.Contains(t, prompt, "Impact: [Major/Minor/Tiny]")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo", 10))
	assert.Equal(t, "h", truncate("héllo", 2))
	assert.Equal(t, "hé", truncate("héllo", 3))
	assert.Equal(t, "abc", truncate("abc", 0))
}

func TestClassify(t *testing.T) {
	mock := &MockCompleter{Reply: "Description: Adds retry logic\nImpact: Minor"}
	c := New(mock, Options{})

	got, err := c.Classify(context.Background(), models.ChangeRequest{Number: 5, Title: "Retry"}, "+retry()")

	require.NoError(t, err)
	assert.Equal(t, models.Classification{Description: "Adds retry logic", Impact: models.ImpactMinor}, got)
	require.Len(t, mock.Prompts, 1)
	assert.Contains(t, mock.Prompts[0], "+retry()")
}

func TestClassifyMalformedIsUnclassified(t *testing.T) {
	mock := &MockCompleter{Reply: "I am not sure what this does."}
	c := New(mock, Options{})

	got, err := c.Classify(context.Background(), models.ChangeRequest{Number: 6}, "")

	require.NoError(t, err)
	assert.True(t, got.Unclassified())
	assert.Equal(t, "I am not sure what this does.", got.Raw)
}

func TestClassifyTransportError(t *testing.T) {
	mock := &MockCompleter{Err: errors.New("connection refused")}
	c := New(mock, Options{})

	_, err := c.Classify(context.Background(), models.ChangeRequest{Number: 7}, "")

	assert.ErrorContains(t, err, "failed to classify #7")
}

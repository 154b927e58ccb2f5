package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every bound variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "github.com", config.GitHub.Domain)
	assert.Equal(t, 30*time.Second, config.GitHub.Timeout)
	assert.Equal(t, "anthropic", config.LLM.Provider)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, uint(4), config.LLM.MaxAttempts)
	assert.Equal(t, 8000, config.LLM.DiffCharBudget)
	assert.Equal(t, "leveldb", config.Cache.Driver)
	assert.Equal(t, "./pr-analysis-cache", config.Cache.Path)
	assert.Equal(t, time.Hour, config.Scan.Window)
	assert.Equal(t, 4, config.Scan.Workers)
	assert.Equal(t, []string{"renovate", "dependabot"}, config.Scan.BotMarkers)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_DOMAIN", "github.example.com")
	t.Setenv("GITHUB_ORG", "acme")
	t.Setenv("FULL_REPO_LIST", "widgets, gadgets")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SCAN_WINDOW", "2h")
	t.Setenv("SCAN_WORKERS", "8")
	t.Setenv("CACHE_DRIVER", "sqlite3")
	t.Setenv("BOT_MARKERS", "renovate, ,github-actions")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb")
	t.Setenv("SLACK_CHANNEL_ID", "C1")

	config, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "ghp_test", config.GitHub.Token)
	assert.Equal(t, "github.example.com", config.GitHub.Domain)
	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "sk-test", config.LLM.APIKey())
	assert.Equal(t, 2*time.Hour, config.Scan.Window)
	assert.Equal(t, 8, config.Scan.Workers)
	assert.Equal(t, "sqlite3", config.Cache.Driver)
	assert.Equal(t, []string{"renovate", "github-actions"}, config.Scan.BotMarkers)
	assert.True(t, config.Slack.SlackEnabled())
	assert.Equal(t, []string{"acme/widgets", "acme/gadgets"}, config.GitHub.RepositoryNames())
	assert.NoError(t, Validate(config, nil))
	assert.NoError(t, ValidateLLMConfig(config))
}

func TestLoadConfigFlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCAN_WINDOW", "2h")

	flags := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	flags.Duration("window", time.Hour, "")
	flags.Int("workers", 4, "")
	require.NoError(t, flags.Parse([]string{"--window", "30m"}))

	config, err := LoadConfig(flags)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, config.Scan.Window)
	assert.Equal(t, 4, config.Scan.Workers)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GITHUB_ORG=from-dotenv\nFULL_REPO_LIST=all\n"), 0o600))
	t.Chdir(dir)

	config, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", config.GitHub.Org)
	assert.True(t, config.GitHub.AllRepositories())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		org         string
		repoList    string
		flagged     []string
		window      time.Duration
		wantMissing []string
		wantErr     bool
	}{
		{name: "valid list", org: "acme", repoList: "widgets", window: time.Hour},
		{name: "valid all", org: "acme", repoList: "all", window: time.Hour},
		{name: "qualified list without org", repoList: "acme/widgets,other/tools", window: time.Hour},
		{name: "flags replace list", org: "acme", flagged: []string{"widgets"}, window: time.Hour},
		{name: "qualified flags need nothing", flagged: []string{"acme/widgets"}, window: time.Hour},
		{name: "bare flag needs org", flagged: []string{"acme/widgets", "gadgets"}, window: time.Hour, wantMissing: []string{"GITHUB_ORG"}, wantErr: true},
		{name: "all needs org", repoList: "all", window: time.Hour, wantMissing: []string{"GITHUB_ORG"}, wantErr: true},
		{name: "bare list entry needs org", repoList: "acme/widgets,gadgets", window: time.Hour, wantMissing: []string{"GITHUB_ORG"}, wantErr: true},
		{name: "missing list", org: "acme", window: time.Hour, wantMissing: []string{"FULL_REPO_LIST"}, wantErr: true},
		{name: "missing both", window: time.Hour, wantMissing: []string{"GITHUB_ORG", "FULL_REPO_LIST"}, wantErr: true},
		{name: "zero window", org: "acme", repoList: "all", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{
				GitHub: GitHubConfig{Org: tt.org, RepoList: tt.repoList},
				Scan:   ScanConfig{Window: tt.window},
			}

			err := Validate(config, tt.flagged)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantMissing != nil {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantMissing, verr.Missing)
			}
		})
	}
}

func TestValidateLLMConfig(t *testing.T) {
	assert.Error(t, ValidateLLMConfig(&Config{LLM: LLMConfig{Provider: "anthropic"}}))
	assert.NoError(t, ValidateLLMConfig(&Config{LLM: LLMConfig{Provider: "anthropic", AnthropicAPIKey: "k"}}))
	assert.Error(t, ValidateLLMConfig(&Config{LLM: LLMConfig{Provider: "openai", AnthropicAPIKey: "k"}}))
	assert.ErrorContains(t, ValidateLLMConfig(&Config{LLM: LLMConfig{Provider: "bard"}}), "unknown LLM_PROVIDER")
}

func TestRepositorySelection(t *testing.T) {
	for _, v := range []string{"true", "all", "ALL"} {
		assert.True(t, GitHubConfig{RepoList: v}.AllRepositories(), v)
	}
	assert.False(t, GitHubConfig{RepoList: "widgets"}.AllRepositories())

	c := GitHubConfig{Org: "acme", RepoList: " widgets ,other/gadgets,, "}
	assert.Equal(t, []string{"acme/widgets", "other/gadgets"}, c.RepositoryNames())
}

func TestSlackEnabled(t *testing.T) {
	assert.False(t, SlackConfig{Token: "xoxb"}.SlackEnabled())
	assert.False(t, SlackConfig{ChannelID: "C1"}.SlackEnabled())
	assert.True(t, SlackConfig{Token: "xoxb", ChannelID: "C1"}.SlackEnabled())
}

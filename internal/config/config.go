// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub   GitHubConfig
	LLM      LLMConfig
	Cache    CacheConfig
	Scan     ScanConfig
	Discord  DiscordConfig
	Slack    SlackConfig
	WhatsApp WhatsAppConfig
	Log      LogConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token   string
	Domain  string
	Org     string
	Timeout time.Duration

	// RepoList is the raw FULL_REPO_LIST value: "true", "all", or a comma
	// separated list of repository names inside Org.
	RepoList string
}

// LLMConfig holds language model configuration.
type LLMConfig struct {
	Provider        string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	Model           string
	MaxTokens       int
	Timeout         time.Duration
	MaxAttempts     uint

	DiffCharBudget      int
	DiffMaxLinesPerFile int
	SummaryMaxBatch     int
	SummaryMaxChars     int
}

// CacheConfig selects the classification store.
type CacheConfig struct {
	Driver string
	Path   string
}

// ScanConfig controls the polling window and concurrency.
type ScanConfig struct {
	Window         time.Duration
	Workers        int
	RequestWorkers int
	RunTimeout     time.Duration
	BotMarkers     []string
}

// DiscordConfig holds Discord webhook URLs.
type DiscordConfig struct {
	WebhookURL       string
	IssuesWebhookURL string
}

// SlackConfig holds Slack bot configuration.
type SlackConfig struct {
	Token     string
	ChannelID string
}

// WhatsAppConfig holds the linked-device store and recipient.
type WhatsAppConfig struct {
	StoreDSN   string
	Recipient  string
	DeviceName string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// ValidationError lists required variables that are not set.
type ValidationError struct {
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("missing required environment variables: %v", e.Missing)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

var envBindings = map[string]string{
	"github.token":               "GITHUB_TOKEN",
	"github.domain":              "GITHUB_DOMAIN",
	"github.org":                 "GITHUB_ORG",
	"github.repo_list":           "FULL_REPO_LIST",
	"github.timeout":             "GITHUB_TIMEOUT",
	"llm.provider":               "LLM_PROVIDER",
	"llm.anthropic_api_key":      "ANTHROPIC_API_KEY",
	"llm.openai_api_key":         "OPENAI_API_KEY",
	"llm.openai_base_url":        "OPENAI_BASE_URL",
	"llm.model":                  "LLM_MODEL",
	"llm.max_tokens":             "LLM_MAX_TOKENS",
	"llm.timeout":                "LLM_TIMEOUT",
	"llm.max_attempts":           "LLM_MAX_ATTEMPTS",
	"llm.diff_char_budget":       "DIFF_CHAR_BUDGET",
	"llm.diff_max_lines":         "DIFF_MAX_LINES_PER_FILE",
	"llm.summary_max_batch":      "SUMMARY_MAX_BATCH",
	"llm.summary_max_chars":      "SUMMARY_MAX_CHARS",
	"cache.driver":               "CACHE_DRIVER",
	"cache.path":                 "CACHE_PATH",
	"scan.window":                "SCAN_WINDOW",
	"scan.workers":               "SCAN_WORKERS",
	"scan.request_workers":       "SCAN_REQUEST_WORKERS",
	"scan.run_timeout":           "SCAN_RUN_TIMEOUT",
	"scan.bot_markers":           "BOT_MARKERS",
	"discord.webhook_url":        "DISCORD_WEBHOOK_URL",
	"discord.issues_webhook_url": "ISSUES_DISCORD_WEBHOOK_URL",
	"slack.token":                "SLACK_BOT_TOKEN",
	"slack.channel_id":           "SLACK_CHANNEL_ID",
	"whatsapp.store_dsn":         "WHATSAPP_STORE_DSN",
	"whatsapp.recipient":         "WHATSAPP_RECIPIENT",
	"whatsapp.device_name":       "WHATSAPP_DEVICE_NAME",
	"log.level":                  "LOG_LEVEL",
	"log.format":                 "LOG_FORMAT",
	"log.file":                   "LOG_FILE",
}

// FlagBindings maps command-line flags onto configuration keys. Only flags
// present on the command are bound.
var FlagBindings = map[string]string{
	"window":   "scan.window",
	"workers":  "scan.workers",
	"cache":    "cache.path",
	"provider": "llm.provider",
}

// LoadConfig loads an optional .env file, then reads environment variables
// and flags. Values already in the environment take precedence over .env.
// It does not validate; commands call Validate and friends for what they need.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	if flags != nil {
		for name, key := range FlagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	setDefaults(v)

	config := &Config{
		GitHub: GitHubConfig{
			Token:    v.GetString("github.token"),
			Domain:   v.GetString("github.domain"),
			Org:      strings.TrimSpace(v.GetString("github.org")),
			RepoList: strings.TrimSpace(v.GetString("github.repo_list")),
			Timeout:  v.GetDuration("github.timeout"),
		},
		LLM: LLMConfig{
			Provider:            strings.ToLower(v.GetString("llm.provider")),
			AnthropicAPIKey:     v.GetString("llm.anthropic_api_key"),
			OpenAIAPIKey:        v.GetString("llm.openai_api_key"),
			OpenAIBaseURL:       v.GetString("llm.openai_base_url"),
			Model:               v.GetString("llm.model"),
			MaxTokens:           v.GetInt("llm.max_tokens"),
			Timeout:             v.GetDuration("llm.timeout"),
			MaxAttempts:         v.GetUint("llm.max_attempts"),
			DiffCharBudget:      v.GetInt("llm.diff_char_budget"),
			DiffMaxLinesPerFile: v.GetInt("llm.diff_max_lines"),
			SummaryMaxBatch:     v.GetInt("llm.summary_max_batch"),
			SummaryMaxChars:     v.GetInt("llm.summary_max_chars"),
		},
		Cache: CacheConfig{
			Driver: strings.ToLower(v.GetString("cache.driver")),
			Path:   v.GetString("cache.path"),
		},
		Scan: ScanConfig{
			Window:         v.GetDuration("scan.window"),
			Workers:        v.GetInt("scan.workers"),
			RequestWorkers: v.GetInt("scan.request_workers"),
			RunTimeout:     v.GetDuration("scan.run_timeout"),
			BotMarkers:     splitList(v.GetString("scan.bot_markers")),
		},
		Discord: DiscordConfig{
			WebhookURL:       v.GetString("discord.webhook_url"),
			IssuesWebhookURL: v.GetString("discord.issues_webhook_url"),
		},
		Slack: SlackConfig{
			Token:     v.GetString("slack.token"),
			ChannelID: v.GetString("slack.channel_id"),
		},
		WhatsApp: WhatsAppConfig{
			StoreDSN:   v.GetString("whatsapp.store_dsn"),
			Recipient:  v.GetString("whatsapp.recipient"),
			DeviceName: v.GetString("whatsapp.device_name"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.domain", "github.com")
	v.SetDefault("github.timeout", 30*time.Second)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_attempts", 4)
	v.SetDefault("llm.diff_char_budget", 8000)
	v.SetDefault("llm.diff_max_lines", 200)
	v.SetDefault("llm.summary_max_batch", 50)
	v.SetDefault("llm.summary_max_chars", 24000)
	v.SetDefault("cache.driver", "leveldb")
	v.SetDefault("cache.path", "./pr-analysis-cache")
	v.SetDefault("scan.window", time.Hour)
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.request_workers", 2)
	v.SetDefault("scan.run_timeout", 15*time.Minute)
	v.SetDefault("scan.bot_markers", "renovate,dependabot")
	v.SetDefault("whatsapp.store_dsn", "file:whatsapp.db?_foreign_keys=on")
	v.SetDefault("whatsapp.device_name", "prwatch")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks the settings every command needs before touching the
// network. repositories are the -r overrides; when given, FULL_REPO_LIST is
// not needed, and GITHUB_ORG only when some entry lacks an owner.
func Validate(config *Config, repositories []string) error {
	var missingVars []string

	if config.GitHub.Org == "" && config.GitHub.needsOrg(repositories) {
		missingVars = append(missingVars, "GITHUB_ORG")
	}
	if len(repositories) == 0 && config.GitHub.RepoList == "" {
		missingVars = append(missingVars, "FULL_REPO_LIST")
	}

	if len(missingVars) > 0 {
		return &ValidationError{
			Missing: missingVars,
			Reason:  `set FULL_REPO_LIST to "true" or "all" for every public repository, or to a comma separated list`,
		}
	}
	if config.Scan.Window <= 0 {
		return fmt.Errorf("invalid SCAN_WINDOW %s, must be positive", config.Scan.Window)
	}
	return nil
}

// ValidateLLMConfig checks that the selected provider has an API key.
func ValidateLLMConfig(config *Config) error {
	switch config.LLM.Provider {
	case "anthropic":
		if config.LLM.AnthropicAPIKey == "" {
			return &ValidationError{Missing: []string{"ANTHROPIC_API_KEY"}}
		}
	case "openai":
		if config.LLM.OpenAIAPIKey == "" {
			return &ValidationError{Missing: []string{"OPENAI_API_KEY"}}
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q, expected anthropic or openai", config.LLM.Provider)
	}
	return nil
}

// AllRepositories reports whether every public repository of Org should be scanned.
func (c GitHubConfig) AllRepositories() bool {
	v := strings.ToLower(c.RepoList)
	return v == "true" || v == "all"
}

// RepositoryNames returns the static repository list as "org/name" entries.
func (c GitHubConfig) RepositoryNames() []string {
	var names []string
	for _, name := range splitList(c.RepoList) {
		if !strings.Contains(name, "/") {
			name = c.Org + "/" + name
		}
		names = append(names, name)
	}
	return names
}

// needsOrg reports whether resolving the repositories requires Org: when
// listing all repositories or when an entry has no "owner/" prefix.
func (c GitHubConfig) needsOrg(repositories []string) bool {
	entries := repositories
	if len(entries) == 0 {
		if c.RepoList == "" || c.AllRepositories() {
			return true
		}
		entries = splitList(c.RepoList)
	}
	for _, name := range entries {
		if !strings.Contains(name, "/") {
			return true
		}
	}
	return false
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

// BaseURL returns the endpoint override of the selected provider.
func (c LLMConfig) BaseURL() string {
	if c.Provider == "openai" {
		return c.OpenAIBaseURL
	}
	return ""
}

// SlackEnabled reports whether both a bot token and a channel are set.
func (c SlackConfig) SlackEnabled() bool {
	return c.Token != "" && c.ChannelID != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

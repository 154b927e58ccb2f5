// Package llm adapts hosted language models to a single completion call.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielolaszy/prwatch/internal/retry"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	DefaultAnthropicModel = "claude-3-haiku-20240307"
	DefaultOpenAIModel    = "gpt-4o-mini"
)

// Completer turns a prompt into model text.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint, e.g. for OpenAI-compatible servers.
	BaseURL string
	Retry   retry.Policy
}

// New builds the Completer for cfg.Provider.
func New(cfg Config) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no api key configured for provider %q", cfg.Provider)
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.DefaultPolicy
	}

	switch cfg.Provider {
	case "", ProviderAnthropic:
		if cfg.Model == "" {
			cfg.Model = DefaultAnthropicModel
		}
		return NewAnthropic(cfg), nil
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q, expected %s or %s", cfg.Provider, ProviderAnthropic, ProviderOpenAI)
	}
}

// classifyStatus marks client errors other than rate limiting as permanent.
func classifyStatus(status int, err error) error {
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
		return retry.Permanent(err)
	}
	return err
}

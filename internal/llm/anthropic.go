package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/internal/retry"
)

// Anthropic completes prompts with the Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
	policy retry.Policy
}

// NewAnthropic creates a client. Retries are handled by the retry package,
// so the SDK's own retry loop is disabled.
func NewAnthropic(cfg Config) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	logging.Debug("anthropic client configured",
		"model", cfg.Model,
		"api_key", logging.MaskSensitive(cfg.APIKey))

	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		policy: cfg.Retry,
	}
}

// Complete sends prompt as a single user message and returns the text blocks of the reply.
func (a *Anthropic) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var text string
	err := retry.Do(ctx, "anthropic messages", a.policy, func(ctx context.Context) error {
		msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			var apiErr *anthropic.Error
			if errors.As(err, &apiErr) {
				return classifyStatus(apiErr.StatusCode, err)
			}
			return err
		}

		var b strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		text = b.String()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}
	return text, nil
}

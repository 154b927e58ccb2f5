package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/internal/retry"
)

// OpenAI completes prompts with the chat completions API of OpenAI or any
// compatible server.
type OpenAI struct {
	client *openai.Client
	model  string
	policy retry.Policy
}

// NewOpenAI creates a client for cfg.BaseURL, or api.openai.com when empty.
func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logging.Debug("openai client configured",
		"model", cfg.Model,
		"base_url", clientCfg.BaseURL,
		"api_key", logging.MaskSensitive(cfg.APIKey))

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		policy: cfg.Retry,
	}
}

func (o *OpenAI) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var text string
	err := retry.Do(ctx, "openai chat completion", o.policy, func(ctx context.Context) error {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     o.model,
			MaxTokens: maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) {
				return classifyStatus(apiErr.HTTPStatusCode, err)
			}
			var reqErr *openai.RequestError
			if errors.As(err, &reqErr) {
				return classifyStatus(reqErr.HTTPStatusCode, err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("openai returned no choices")
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	return text, nil
}

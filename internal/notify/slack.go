package notify

import (
	"context"
	"errors"

	"github.com/slack-go/slack"

	"github.com/danielolaszy/prwatch/internal/retry"
)

// Slack posts messages to one channel as a bot user.
type Slack struct {
	client  *slack.Client
	channel string
}

// NewSlack creates a Slack transport. Options are passed to the slack client.
func NewSlack(token, channel string, opts ...slack.Option) *Slack {
	return &Slack{client: slack.New(token, opts...), channel: channel}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	if err == nil {
		return nil
	}

	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return retry.Permanent(err)
	}
	return err
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/danielolaszy/prwatch/internal/retry"
)

// discordLimit is the maximum message length Discord accepts.
const discordLimit = 2000

// Discord posts messages through an incoming webhook.
type Discord struct {
	session *discordgo.Session
	id      string
	token   string

	// pending and sent track a partly delivered message, so a retried Send
	// resumes after the last part Discord accepted.
	mu      sync.Mutex
	pending string
	sent    int
}

// NewDiscord parses a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func NewDiscord(webhookURL string) (*Discord, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	// Webhook execution needs no bot token.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &Discord{session: session, id: id, token: token}, nil
}

func (d *Discord) Name() string { return "discord" }

// Send posts text, split into several messages when it exceeds Discord's
// limit. Calling Send again with the same text after a failure skips the
// parts that were already posted.
func (d *Discord) Send(ctx context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if text != d.pending {
		d.pending, d.sent = text, 0
	}

	parts := splitMessage(text, discordLimit)
	for d.sent < len(parts) {
		_, err := d.session.WebhookExecute(d.id, d.token, false, &discordgo.WebhookParams{Content: parts[d.sent]}, discordgo.WithContext(ctx))
		if err != nil {
			var restErr *discordgo.RESTError
			if errors.As(err, &restErr) && restErr.Response != nil &&
				restErr.Response.StatusCode < http.StatusInternalServerError &&
				restErr.Response.StatusCode != http.StatusTooManyRequests {
				d.pending, d.sent = "", 0
				return retry.Permanent(err)
			}
			return err
		}
		d.sent++
	}

	d.pending, d.sent = "", 0
	return nil
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid discord webhook url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", errors.New("invalid discord webhook url, expected format: https://discord.com/api/webhooks/{id}/{token}")
}

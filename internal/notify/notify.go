// Package notify delivers text messages to chat transports.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/danielolaszy/prwatch/internal/logging"
	"github.com/danielolaszy/prwatch/internal/retry"
)

// Notifier is a single chat transport.
type Notifier interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Dispatcher fans a message out to every configured transport. Delivery is
// best effort: a failing transport is retried, logged and reported, but
// never stops delivery to the others.
type Dispatcher struct {
	notifiers []Notifier
	policy    retry.Policy
}

// NewDispatcher creates a Dispatcher over notifiers.
func NewDispatcher(policy retry.Policy, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, policy: policy}
}

// Len returns the number of transports.
func (d *Dispatcher) Len() int {
	return len(d.notifiers)
}

// Broadcast sends text to every transport and returns the combined delivery errors.
func (d *Dispatcher) Broadcast(ctx context.Context, text string) error {
	if len(d.notifiers) == 0 {
		logging.Debug("no notification transports configured, dropping message")
		return nil
	}

	var errs error
	for _, n := range d.notifiers {
		err := retry.Do(ctx, "send "+n.Name(), d.policy, func(ctx context.Context) error {
			return n.Send(ctx, text)
		})
		if err != nil {
			logging.Error("failed to deliver notification", "transport", n.Name(), "error", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		logging.Debug("notification delivered", "transport", n.Name())
	}
	return errs
}

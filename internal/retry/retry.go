// Package retry runs network calls with bounded exponential backoff and a
// per-attempt timeout.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/danielolaszy/prwatch/internal/logging"
)

// Policy bounds how often and how long an operation is attempted.
type Policy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
	// Timeout applies to each attempt. Zero leaves only the caller's deadline.
	Timeout time.Duration
}

// DefaultPolicy is used by adapters that are not given an explicit policy.
var DefaultPolicy = Policy{
	Attempts: 4,
	Delay:    500 * time.Millisecond,
	MaxDelay: 10 * time.Second,
	Timeout:  60 * time.Second,
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTransient reports whether err may succeed on another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// Do calls fn until it succeeds, returns a non-transient error, the attempts
// run out, or ctx is done. The last error is returned.
func Do(ctx context.Context, operation string, policy Policy, fn func(ctx context.Context) error) error {
	if policy.Attempts == 0 {
		policy.Attempts = 1
	}
	return retry.Do(
		func() error {
			attemptCtx := ctx
			if policy.Timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
				defer cancel()
			}
			return fn(attemptCtx)
		},
		retry.Context(ctx),
		retry.Attempts(policy.Attempts),
		retry.Delay(policy.Delay),
		retry.MaxDelay(policy.MaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(policy.Delay),
		retry.RetryIf(IsTransient),
		retry.OnRetry(func(n uint, err error) {
			logging.Warn("retrying operation",
				"operation", operation,
				"attempt", n+1,
				"max_attempts", policy.Attempts,
				"error", err)
		}),
		retry.LastErrorOnly(true),
	)
}

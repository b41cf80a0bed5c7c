// Package retry provides a small retry policy used by outbound HTTP calls
// such as image downloads and publish requests.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how an operation is retried. Retryable decides whether a
// given error is worth another attempt; a nil Retryable retries everything.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Retryable       func(error) bool
}

// DefaultPolicy mirrors the download/publish retry behaviour: three attempts
// with short exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Do runs fn until it succeeds, the policy is exhausted, or the context is
// cancelled. Errors rejected by Retryable stop the loop immediately.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}

	policy := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		policy.InitialInterval = p.InitialInterval
	}

	if p.MaxInterval > 0 {
		policy.MaxInterval = p.MaxInterval
	}

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, attempts-1), ctx))
}

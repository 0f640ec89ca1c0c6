package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tbourn/go-comic-bot/internal/repo"
)

// RetryPolicy bounds the retries of transient store errors.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetry is used when a service has no explicit policy.
var DefaultRetry = RetryPolicy{MaxRetries: 4, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second}

// retry runs op, retrying with exponential backoff while it fails with a
// transient store error. Any other error is returned immediately.
func retry(ctx context.Context, p RetryPolicy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !repo.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx))
}

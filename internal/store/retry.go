package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// RetryConfig controls the backoff applied between attempts. Attempt n
// waits BaseDelay * 2^(n-1) before retrying.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetry() RetryConfig {
	return RetryConfig{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// WithRetry runs op with exponential backoff. Concurrent writers to the
// same document can transiently collide on the read-modify-write cycle;
// retrying is the chosen mitigation rather than locking. The last error
// is surfaced once attempts are exhausted. ctx carries cancellation.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}

	var out T
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	wrapped := func() error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}
	err := backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1)), ctx))
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

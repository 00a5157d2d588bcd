package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection provides typed access to one named document. Reading a
// document that doesn't exist yet yields the zero value of T, so
// first-time writers need no bootstrap step.
type Collection[T any] struct {
	store *DocStore
	name  string
	retry RetryConfig
}

func NewCollection[T any](store *DocStore, name string) *Collection[T] {
	return &Collection[T]{store: store, name: name, retry: DefaultRetry()}
}

// WithRetryConfig overrides the retry policy used by Update.
func (c *Collection[T]) WithRetryConfig(cfg RetryConfig) *Collection[T] {
	c.retry = cfg
	return c
}

func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) Read(ctx context.Context) (T, error) {
	var out T
	data, err := c.store.Read(ctx, c.name)
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode document %s: %w", c.name, err)
	}
	return out, nil
}

// Update reads the document, applies mutate to the decoded value and
// writes the result back, retrying the whole cycle on failure. This is
// the single mutation entry point for every collection; mutate must be
// a pure transformation because it can run more than once. The cycle is
// not atomic relative to a concurrent updater: the window between read
// and write is a last-write-wins race, acceptable at this write rate.
func (c *Collection[T]) Update(ctx context.Context, mutate func(T) T) (T, error) {
	return WithRetry(ctx, c.retry, func(ctx context.Context) (T, error) {
		cur, err := c.Read(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		next := mutate(cur)
		data, err := json.MarshalIndent(next, "", "  ")
		if err != nil {
			var zero T
			return zero, fmt.Errorf("encode document %s: %w", c.name, err)
		}
		if err := c.store.Write(ctx, c.name, data); err != nil {
			var zero T
			return zero, err
		}
		return next, nil
	})
}

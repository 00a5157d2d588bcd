package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	fast := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

	t.Run("returns result on first success", func(t *testing.T) {
		calls := 0
		got, err := WithRetry(ctx, fast, func(context.Context) (int, error) {
			calls++
			return 42, nil
		})
		if err != nil {
			t.Fatalf("WithRetry: %v", err)
		}
		if got != 42 {
			t.Errorf("Expected 42, got %d", got)
		}
		if calls != 1 {
			t.Errorf("Expected 1 call, got %d", calls)
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		got, err := WithRetry(ctx, fast, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("WithRetry: %v", err)
		}
		if got != "ok" {
			t.Errorf("Expected ok, got %q", got)
		}
		if calls != 3 {
			t.Errorf("Expected 3 calls, got %d", calls)
		}
	})

	t.Run("surfaces last error after exhausting attempts", func(t *testing.T) {
		calls := 0
		last := errors.New("still broken")
		_, err := WithRetry(ctx, fast, func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("earlier failure")
			}
			return 0, last
		})
		if !errors.Is(err, last) {
			t.Errorf("Expected last error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("Expected exactly 3 attempts, got %d", calls)
		}
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		_, err := WithRetry(cctx, RetryConfig{MaxAttempts: 10, BaseDelay: 10 * time.Millisecond}, func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, errors.New("transient")
		})
		if err == nil {
			t.Fatal("Expected error after cancellation")
		}
		if calls > 2 {
			t.Errorf("Expected retries to stop after cancel, got %d calls", calls)
		}
	})
}

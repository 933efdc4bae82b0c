package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"liquidityPortal/internal/fault"
)

func TestWithRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("dial tcp: i/o timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryExhausts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		attempts++
		return errors.New("connection refused")
	})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryStopsOnFatal(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		attempts++
		return fault.ErrOwnershipMismatch
	})
	if !errors.Is(err, fault.ErrOwnershipMismatch) {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("fatal error should not be retried, got %d attempts", attempts)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, 5, 50*time.Millisecond, func(context.Context) error {
		return errors.New("dial tcp: i/o timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

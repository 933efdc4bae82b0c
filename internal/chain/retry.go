package chain

import (
	"context"
	"time"

	"liquidityPortal/internal/fault"
)

// WithRetry retries fn with exponential backoff. Only read operations
// should go through here; writes are never safe to blind-retry. Errors the
// taxonomy marks non-transient abort immediately.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		if !fault.Retryable(err) && fault.Classify(err) != fault.ClassUnknown {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

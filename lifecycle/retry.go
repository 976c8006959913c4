package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/mnemo-dev/mnemo/store"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 250 * time.Millisecond
)

// retryWrite retries a store write with exponential backoff. ErrNotFound
// and context cancellation are permanent; everything else is treated as a
// transient persistence failure.
func retryWrite(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := writeBaseDelay

	for attempt := 0; attempt < writeAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrNotFound) || ctx.Err() != nil {
			return err
		}
		lastErr = err

		if attempt < writeAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}

	return lastErr
}

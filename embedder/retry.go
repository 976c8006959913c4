package embedder

import (
	"context"
	"errors"
	"time"
)

// RetryConfig configures exponential backoff around embedding calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryingEmbedder wraps another Embedder and retries transient failures
// with exponential backoff. Exhausting the attempt budget surfaces the
// last error; context cancellation is never retried.
type RetryingEmbedder struct {
	inner Embedder
	cfg   RetryConfig
}

func WithRetry(inner Embedder, cfg RetryConfig) *RetryingEmbedder {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	return &RetryingEmbedder{inner: inner, cfg: cfg}
}

func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	backoff := r.cfg.BaseDelay

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		vec, err := r.inner.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * r.cfg.Multiplier)
				if backoff > r.cfg.MaxDelay {
					backoff = r.cfg.MaxDelay
				}
			}
		}
	}

	return nil, lastErr
}

func (r *RetryingEmbedder) Dimensions() int {
	return r.inner.Dimensions()
}

func (r *RetryingEmbedder) Close() error {
	return r.inner.Close()
}

// isRetryable reports whether the error is worth another attempt. Client
// errors other than rate limiting are permanent.
func isRetryable(err error) bool {
	var embErr *EmbeddingError
	if !errors.As(err, &embErr) {
		return false
	}

	switch {
	case embErr.StatusCode == 0:
		return true // network-level failure
	case embErr.StatusCode == 429:
		return true
	case embErr.StatusCode >= 500:
		return true
	default:
		return false
	}
}

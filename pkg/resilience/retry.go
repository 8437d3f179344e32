package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tududes/plugin-chutes/pkg/observability"
)

// RetryPolicy defines retry behavior for a sequence of attempts.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt, so
	// a sequence runs at most MaxRetries+1 attempts.
	MaxRetries int
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
	// Retryable reports whether a failed attempt may be retried. A nil
	// classifier retries everything.
	Retryable func(error) bool
}

// NewRequestBackoff builds the backoff schedule used between attempts:
// base * 2^(n-1) with ±20% jitter and no elapsed-time or interval cap,
// so the attempt cap in Do is the only terminator.
func NewRequestBackoff(base time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.2
	b.MaxInterval = 24 * time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Do runs fn until it succeeds, fails terminally, or the attempt cap
// is reached. fn receives the zero-based attempt index. Attempts are
// strictly sequential: attempt n+1 starts only after attempt n has
// failed and the backoff delay has elapsed. The error from the last
// attempt is the one returned. One warning line is logged per failed
// attempt.
func Do[T any](ctx context.Context, pol RetryPolicy, logger observability.Logger, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	bo := NewRequestBackoff(pol.BaseDelay)
	var lastErr error

	for attempt := 0; attempt <= pol.MaxRetries; attempt++ {
		value, err := fn(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if pol.Retryable != nil && !pol.Retryable(err) {
			logger.Debug("attempt failed with terminal error", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			return zero, err
		}
		if attempt == pol.MaxRetries {
			break
		}

		delay := bo.NextBackOff()
		logger.Warn("attempt failed, retrying", map[string]interface{}{
			"attempt":     attempt + 1,
			"max_retries": pol.MaxRetries,
			"delay_ms":    delay.Milliseconds(),
			"error":       err.Error(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

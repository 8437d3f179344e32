// Package resilience provides the retry, timeout, rate-limiting and
// circuit-breaking primitives the request executor is composed from.
package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that an operation exceeded its deadline.
type TimeoutError struct {
	Label string
	After time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %dms", e.Label, e.After.Milliseconds())
}

type outcome[T any] struct {
	value T
	err   error
}

// WithTimeout races op against a deadline of d. The operation receives
// a context that is cancelled when the deadline fires, so cooperative
// operations abort their in-flight work; operations that ignore the
// context are abandoned once the deadline passes. The deadline timer is
// released on every path. WithTimeout never retries.
func WithTimeout[T any](ctx context.Context, d time.Duration, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// Buffered so a late-finishing operation can always deliver its
	// outcome and exit instead of blocking forever.
	done := make(chan outcome[T], 1)
	go func() {
		v, err := op(tctx)
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			// The caller's context ended, not our deadline.
			return zero, ctx.Err()
		}
		return zero, &TimeoutError{Label: label, After: d}
	}
}

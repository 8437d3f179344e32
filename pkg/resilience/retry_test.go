package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func quickRetry(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), quickRetry(3), nil, func(attempt int) (string, error) {
		attempts++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, attempts)
}

func TestDoAttemptCapIsMaxRetriesPlusOne(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("maxRetries=%d", maxRetries), func(t *testing.T) {
			attempts := 0
			_, err := Do(context.Background(), quickRetry(maxRetries), nil, func(attempt int) (int, error) {
				assert.Equal(t, attempts, attempt)
				attempts++
				return 0, errTransient
			})
			assert.ErrorIs(t, err, errTransient)
			assert.Equal(t, maxRetries+1, attempts)
		})
	}
}

func TestDoTerminalErrorStopsImmediately(t *testing.T) {
	terminal := errors.New("bad request")
	pol := quickRetry(5)
	pol.Retryable = func(err error) bool { return !errors.Is(err, terminal) }

	attempts := 0
	_, err := Do(context.Background(), pol, nil, func(attempt int) (int, error) {
		attempts++
		return 0, terminal
	})
	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, attempts)
}

func TestDoRecoversMidSequence(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), quickRetry(3), nil, func(attempt int) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)
}

func TestDoSurfacesLastError(t *testing.T) {
	_, err := Do(context.Background(), quickRetry(2), nil, func(attempt int) (int, error) {
		return 0, fmt.Errorf("failure %d", attempt)
	})
	require.Error(t, err)
	assert.Equal(t, "failure 2", err.Error())
}

func TestDoContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pol := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, pol, nil, func(attempt int) (int, error) {
			attempts++
			return 0, errTransient
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestRequestBackoffBounds(t *testing.T) {
	base := 100 * time.Millisecond
	bo := NewRequestBackoff(base)

	for n := 1; n <= 5; n++ {
		delay := bo.NextBackOff()
		expected := time.Duration(float64(base) * float64(int(1)<<uint(n-1)))
		lower := time.Duration(float64(expected) * 0.8)
		upper := time.Duration(float64(expected) * 1.2)
		assert.GreaterOrEqual(t, delay, lower, "delay before attempt %d below jitter floor", n)
		assert.LessOrEqual(t, delay, upper, "delay before attempt %d above jitter ceiling", n)
	}
}

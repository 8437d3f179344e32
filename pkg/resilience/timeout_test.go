package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWithTimeoutOperationFinishesFirst(t *testing.T) {
	got, err := WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestWithTimeoutPropagatesOperationError(t *testing.T) {
	opErr := errors.New("boom")
	_, err := WithTimeout(context.Background(), time.Second, "failing", func(ctx context.Context) (int, error) {
		return 0, opErr
	})
	assert.ErrorIs(t, err, opErr)
}

func TestWithTimeoutDeadlineFires(t *testing.T) {
	start := time.Now()
	_, err := WithTimeout(context.Background(), 30*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		select {
		case <-time.After(5 * time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
	elapsed := time.Since(start)

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "slow", terr.Label)
	assert.Equal(t, "operation slow timed out after 30ms", terr.Error())
	assert.Less(t, elapsed, 500*time.Millisecond, "deadline should fire near 30ms, not after the operation")
}

func TestWithTimeoutCooperativeCancellation(t *testing.T) {
	observed := make(chan struct{})
	_, err := WithTimeout(context.Background(), 20*time.Millisecond, "cancellable", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(observed)
		return 0, ctx.Err()
	})

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)

	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatal("operation never observed cancellation")
	}
}

func TestWithTimeoutParentCancellationIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := WithTimeout(ctx, time.Minute, "parent-cancelled", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	var terr *TimeoutError
	assert.False(t, errors.As(err, &terr), "caller cancellation must not be classified as a timeout")
	assert.ErrorIs(t, err, context.Canceled)
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRetriesRetryableFailure(t *testing.T) {
	exec := NewExecutor(Config{RetryMaxAttempts: 3, RetryInitialBackoff: time.Millisecond}, nil)

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "classify", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, TransientClassifier)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{RetryMaxAttempts: 3, RetryInitialBackoff: time.Millisecond}, nil)

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "classify", func(context.Context) error {
		attempts++
		return errPermanent
	}, nil)

	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, attempts)
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    1,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	}, nil)

	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }

	require.ErrorIs(t, exec.Execute(context.Background(), "publish", fail, nil), boom)
	require.ErrorIs(t, exec.Execute(context.Background(), "publish", fail, nil), boom)

	calls := 0
	err := exec.Execute(context.Background(), "publish", func(context.Context) error {
		calls++
		return nil
	}, nil)
	require.Error(t, err)
	assert.True(t, IsCircuitOpen(err))
	assert.Zero(t, calls)

	require.NoError(t, exec.Execute(context.Background(), "other", func(context.Context) error { return nil }, nil))
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	exec := NewExecutor(Config{RetryMaxAttempts: 3}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exec.Execute(ctx, "classify", func(context.Context) error { return nil }, nil)
	require.ErrorIs(t, err, context.Canceled)
}

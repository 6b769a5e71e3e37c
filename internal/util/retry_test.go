package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{InitialInterval: time.Millisecond, BackoffCoefficient: 2, MaximumInterval: 4 * time.Millisecond, MaximumAttempts: attempts}
}

func TestRetryDelayBackoffIsCapped(t *testing.T) {
	p := DefaultRetryPolicy()
	require.Equal(t, 2*time.Second, p.Delay(1))
	require.Equal(t, 4*time.Second, p.Delay(2))
	require.Equal(t, 16*time.Second, p.Delay(4))
	require.Equal(t, 20*time.Second, p.Delay(5))
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("timeout")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		return errors.New("unavailable")
	})
	require.EqualError(t, err, "unavailable")
	require.Equal(t, 3, calls)
}

func TestRetrySkipsPermanentErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func(error) bool { return false }, func(context.Context) error {
		calls++
		return errors.New("bad request")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := RetryPolicy{InitialInterval: time.Hour, MaximumAttempts: 3}
	err := Retry(ctx, p, nil, func(context.Context) error { return errors.New("timeout") })
	require.ErrorIs(t, err, context.Canceled)
}

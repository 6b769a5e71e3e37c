package util

import (
	"context"
	"time"
)

// RetryPolicy mirrors the Temporal activity retry settings used by the
// workflows so in-process callers back off the same way.
type RetryPolicy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumInterval    time.Duration
	MaximumAttempts    int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    20 * time.Second,
		MaximumAttempts:    3,
	}
}

// Delay is the wait before attempt n+1 (n starting at 1).
func (p RetryPolicy) Delay(n int) time.Duration {
	d := float64(p.InitialInterval)
	coef := p.BackoffCoefficient
	if coef < 1 {
		coef = 1
	}
	for i := 1; i < n; i++ {
		d *= coef
	}
	if p.MaximumInterval > 0 && time.Duration(d) > p.MaximumInterval {
		return p.MaximumInterval
	}
	return time.Duration(d)
}

// Retry runs fn until it succeeds, the attempts run out, retryable reports
// false or ctx ends. The last error is returned.
func Retry(ctx context.Context, p RetryPolicy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := p.MaximumAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for n := 1; n <= attempts; n++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if n == attempts || (retryable != nil && !retryable(err)) {
			return err
		}
		t := time.NewTimer(p.Delay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

package dal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy re-runs an operation on ErrRateLimited with a fixed backoff.
// Any other error propagates to the caller immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 2 * time.Second}
}

func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(p.Backoff):
			}
		}

		err = op(ctx)
		if err == nil || !errors.Is(err, ErrRateLimited) {
			return err
		}
	}

	return fmt.Errorf("retry attempts exhausted: %w", err)
}

package llm

import (
	"context"
	"fmt"
	"time"
)

// withRetry calls fn until it succeeds, fails with a non-transient error,
// or maxRetries retries have been spent. The wait doubles after each attempt.
func withRetry[T any](ctx context.Context, provider string, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("%s: context cancelled during retry wait: %w", provider, ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !isTransientError(err) {
			return zero, err
		}
		lastErr = err
	}

	if maxRetries == 0 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%s: exhausted %d retries: %w", provider, maxRetries, lastErr)
}

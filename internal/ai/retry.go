package ai

import (
	"context"
	"errors"
	"time"
)

// defaultMaxRetries is the number of retries after the first attempt
const defaultMaxRetries = 2

// backoffFor returns the wait before the next attempt. Tests replace it.
var backoffFor = getBackoffDuration

// retryWithBackoff executes fn, retrying Unavailable failures with backoff.
// InvalidResponse failures are returned immediately since a repeat call
// would most likely fail the same way. The wait between attempts honours ctx.
// It also returns the number of attempts made.
func retryWithBackoff[T any](ctx context.Context, maxRetries int, fn func() (T, error)) (T, int, error) {
	var result T
	var lastErr error

	if maxRetries < 0 {
		maxRetries = 0
	}
	maxAttempts := maxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var err error
		result, err = fn()
		if err == nil {
			return result, attempt, nil
		}

		lastErr = err
		if !errors.Is(err, ErrUnavailable) || attempt == maxAttempts {
			return result, attempt, lastErr
		}

		timer := time.NewTimer(backoffFor(err, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, attempt, lastErr
		case <-timer.C:
		}
	}

	return result, maxAttempts, lastErr
}

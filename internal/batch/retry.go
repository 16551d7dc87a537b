package batch

import (
	"fmt"
	"time"
)

const (
	defaultTransferAttempts = 3
	defaultRetryBaseDelay   = 2 * time.Second
)

// withRetry runs fn up to attempts times, doubling the delay between
// attempts. It returns the last error when every attempt fails.
func withRetry(attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = defaultTransferAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryBaseDelay
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

package extract

import (
	"context"
	"time"
)

// retry runs fn up to limit+1 times with exponential backoff (base, 2*base,
// 4*base, ...). Cancellation is honoured between attempts, never mid-call.
func retry(ctx context.Context, limit int, base time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= limit; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * base
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

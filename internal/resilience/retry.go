package resilience

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times, sleeping delay between tries. It
// returns nil on the first success, the last error once attempts are
// exhausted, or the context error if ctx is cancelled while waiting.
//
// Use it only for idempotent operations; the dispatch loop never auto-retries
// side-effecting tools.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

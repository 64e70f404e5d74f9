// Package retry wraps fallible persistence calls with bounded retries
// and a linearly growing backoff.
package retry

import (
	"context"
	"time"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 150 * time.Millisecond
)

// Do runs fn with the default attempt count and base delay.
func Do(ctx context.Context, fn func() error) error {
	return DoWith(ctx, DefaultAttempts, DefaultBaseDelay, fn)
}

// DoWith runs fn up to attempts times. After a failed attempt i
// (1-based) it sleeps base*i before trying again. The last error is
// returned once attempts are exhausted; a canceled context cuts the
// wait short and returns the context error.
func DoWith(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if base <= 0 {
		base = DefaultBaseDelay
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(base * time.Duration(i+1))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}

// Package resilience wraps transient-failure handling for file I/O in the
// synthesis pipeline. Network filesystems and busy disks fail sporadically;
// retrying with backoff keeps a long batch run from dying on a blip.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrAttemptsExhausted is returned when every retry attempt fails.
var ErrAttemptsExhausted = errors.New("all retry attempts failed")

// RetryConfig configures [Retry]. The zero value picks sensible defaults.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	// Defaults to 3.
	Attempts int

	// InitialDelay is the wait before the second attempt; it doubles after
	// every failure. Defaults to 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the backoff. Defaults to 2s.
	MaxDelay time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Second
	}
	return c
}

// Retry runs fn until it succeeds or the configured attempts are exhausted,
// waiting with doubling backoff between tries. A cancelled ctx aborts the wait
// immediately and returns the context error.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.Attempts {
			break
		}
		slog.Debug("operation failed, retrying",
			"attempt", attempt, "of", cfg.Attempts, "delay", delay, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("%w: %v", ErrAttemptsExhausted, lastErr)
}

// RetryWithResult is [Retry] for functions returning a value. This is a
// package-level function because Go does not support method-level type
// parameters.
func RetryWithResult[R any](ctx context.Context, cfg RetryConfig, fn func() (R, error)) (R, error) {
	var result R
	err := Retry(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

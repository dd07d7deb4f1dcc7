package resilience

import (
	"context"
	"time"
)

// RetryConfig controls Retry
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	// Retryable reports whether err is worth another attempt; nil retries everything
	Retryable func(error) bool
}

// Retry calls fn until it succeeds, the attempts run out or ctx is done.
// The delay doubles after every failed attempt, capped at MaxDelay.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.Delay

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return err
}

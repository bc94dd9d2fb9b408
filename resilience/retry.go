package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/flipsync/flipsync/core"
)

// RetryConfig configures exponential backoff retry.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfig is suitable for a flaky outbound HTTP call.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Retry calls fn until it succeeds, cfg.MaxAttempts is exhausted, or ctx is
// canceled, sleeping with exponential backoff between attempts.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == cfg.MaxAttempts {
			break
		}
		if attempt > 1 {
			delay = time.Duration(float64(delay) * cfg.BackoffFactor)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
		sleep := delay
		if cfg.Jitter {
			sleep += time.Duration(rand.Int63n(int64(delay)/5 + 1))
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: %d attempts, last error: %v", core.ErrMaxRetriesExceeded, cfg.MaxAttempts, lastErr)
}

// RetryWithCircuitBreaker composes Retry with cb.Execute so the breaker sees
// every attempt's outcome and can short-circuit subsequent retries once it
// trips mid-loop.
func RetryWithCircuitBreaker(ctx context.Context, cfg RetryConfig, cb *CircuitBreaker, fn func(ctx context.Context) error) error {
	return Retry(ctx, cfg, func(ctx context.Context) error {
		return cb.Execute(ctx, fn)
	})
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipsync/flipsync/core"
)

func TestCircuitBreakerStartsClosedAndAllowsCalls(t *testing.T) {
	cb := New(DefaultConfig("test"))
	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerOpensAfterErrorThresholdAboveVolumeFloor(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.VolumeThreshold = 4
	cfg.ErrorThreshold = 0.5
	cb := New(cfg)

	failing := func(ctx context.Context) error { return errors.New("boom") }
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), failing)
	}
	assert.Equal(t, StateClosed, cb.State(), "below volume floor, breaker must not trip yet")

	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestCircuitBreakerHalfOpenAfterSleepWindowThenCloses(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.VolumeThreshold = 1
	cfg.ErrorThreshold = 0.1
	cfg.SleepWindow = 10 * time.Millisecond
	cfg.HalfOpenRequests = 2
	cfg.SuccessThreshold = 0.5
	cb := New(cfg)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenReopensOnInsufficientSuccessRate(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.VolumeThreshold = 1
	cfg.ErrorThreshold = 0.1
	cfg.SleepWindow = 10 * time.Millisecond
	cfg.HalfOpenRequests = 2
	cfg.SuccessThreshold = 0.9
	cb := New(cfg)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())
	time.Sleep(15 * time.Millisecond)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerRejectsWhileOpen(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.VolumeThreshold = 1
	cfg.ErrorThreshold = 0.1
	cfg.SleepWindow = time.Hour
	cb := New(cfg)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "fn must not run while the breaker is open")
	assert.Equal(t, uint64(1), cb.Metrics().Rejected)
}

func TestCircuitBreakerResetReturnsToClosed(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.VolumeThreshold = 1
	cfg.ErrorThreshold = 0.1
	cfg.SleepWindow = time.Hour
	cb := New(cfg)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0.0, cb.Metrics().ErrorRate)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttemptsAndWrapsMaxRetriesExceeded(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMaxRetriesExceeded)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}
	err := Retry(ctx, cfg, func(ctx context.Context) error { return errors.New("fails") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithCircuitBreakerStopsRetryingOnceOpen(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.VolumeThreshold = 1
	cfg.ErrorThreshold = 0.1
	cfg.SleepWindow = time.Hour
	cb := New(cfg)

	attempts := 0
	retryCfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	err := RetryWithCircuitBreaker(context.Background(), retryCfg, cb, func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "breaker opens after the first failing attempt, so retries 2-5 are rejected without calling fn")
	assert.Equal(t, StateOpen, cb.State())
}

// Package resilience wraps outbound calls to collaborators that can fail or
// hang: the LLM gateway and marketplace adapters. A CircuitBreaker tracks a
// rolling error rate per collaborator and opens once it crosses a threshold,
// failing fast instead of piling up timeouts against a degraded dependency.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flipsync/flipsync/core"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a CircuitBreaker's trip/recovery behavior.
type Config struct {
	Name string

	// ErrorThreshold is the error rate in [0,1] that trips the breaker.
	ErrorThreshold float64
	// VolumeThreshold is the minimum number of requests in the window
	// before ErrorThreshold is evaluated.
	VolumeThreshold int
	// SleepWindow is how long the breaker stays open before probing again.
	SleepWindow time.Duration
	// HalfOpenRequests is how many probe requests are allowed through
	// while half-open.
	HalfOpenRequests int
	// SuccessThreshold is the half-open success rate needed to close.
	SuccessThreshold float64
	// WindowSize is the sliding window duration over which ErrorThreshold
	// is evaluated.
	WindowSize time.Duration
	// BucketCount divides WindowSize into rotating buckets.
	BucketCount int

	Logger core.Logger
}

// DefaultConfig returns sensible defaults for an outbound HTTP collaborator.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		ErrorThreshold:   0.5,
		VolumeThreshold:  10,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 3,
		SuccessThreshold: 0.6,
		WindowSize:       60 * time.Second,
		BucketCount:      10,
		Logger:           core.NoOpLogger{},
	}
}

// CircuitBreaker guards a single collaborator call behind Execute. State
// transitions closed->open happen once a volume floor and error-rate
// threshold are both crossed; open->half-open after SleepWindow elapses;
// half-open->closed/open once enough probe requests resolve.
type CircuitBreaker struct {
	cfg Config

	state          atomic.Value // State
	stateChangedAt atomic.Value // time.Time

	window *slidingWindow

	mu                sync.Mutex
	halfOpenInFlight  int
	halfOpenSuccesses int
	halfOpenFailures  int

	rejected atomic.Uint64
	total    atomic.Uint64
}

// New constructs a CircuitBreaker, applying zero-value defaults for any
// unset Config field.
func New(cfg Config) *CircuitBreaker {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 60 * time.Second
	}
	if cfg.BucketCount == 0 {
		cfg.BucketCount = 10
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 3
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 0.6
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NoOpLogger{}
	}
	cb := &CircuitBreaker{
		cfg:    cfg,
		window: newSlidingWindow(cfg.WindowSize, cfg.BucketCount),
	}
	cb.state.Store(StateClosed)
	cb.stateChangedAt.Store(time.Now())
	return cb
}

// ErrOpen is returned by Execute when the breaker is currently open.
var ErrOpen = errors.New("circuit breaker open")

// Execute runs fn, recording its outcome against the breaker, unless the
// breaker is open and declining requests.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	allowed, halfOpen := cb.allow()
	if !allowed {
		cb.rejected.Add(1)
		return fmt.Errorf("%s: %w", cb.cfg.Name, ErrOpen)
	}
	cb.total.Add(1)

	err := fn(ctx)
	cb.complete(err, halfOpen)
	return err
}

func (cb *CircuitBreaker) allow() (allowed bool, halfOpen bool) {
	switch cb.State() {
	case StateClosed:
		return true, false
	case StateOpen:
		changedAt := cb.stateChangedAt.Load().(time.Time)
		if time.Since(changedAt) < cb.cfg.SleepWindow {
			return false, false
		}
		cb.mu.Lock()
		if cb.state.Load().(State) == StateOpen {
			cb.transition(StateHalfOpen)
		}
		cb.mu.Unlock()
		return cb.allow()
	case StateHalfOpen:
		cb.mu.Lock()
		defer cb.mu.Unlock()
		if cb.halfOpenInFlight >= cb.cfg.HalfOpenRequests {
			return false, false
		}
		cb.halfOpenInFlight++
		return true, true
	default:
		return false, false
	}
}

func (cb *CircuitBreaker) complete(err error, halfOpen bool) {
	if err == nil {
		cb.window.recordSuccess()
	} else {
		cb.window.recordFailure()
	}

	if halfOpen {
		cb.mu.Lock()
		cb.halfOpenInFlight--
		if err == nil {
			cb.halfOpenSuccesses++
		} else {
			cb.halfOpenFailures++
		}
		total := cb.halfOpenSuccesses + cb.halfOpenFailures
		if total >= cb.cfg.HalfOpenRequests {
			rate := float64(cb.halfOpenSuccesses) / float64(total)
			if rate >= cb.cfg.SuccessThreshold {
				cb.transition(StateClosed)
			} else {
				cb.transition(StateOpen)
			}
		}
		cb.mu.Unlock()
		return
	}

	if cb.State() == StateClosed {
		rate := cb.window.errorRate()
		total := cb.window.total()
		if cb.cfg.VolumeThreshold > 0 && total >= uint64(cb.cfg.VolumeThreshold) && rate >= cb.cfg.ErrorThreshold {
			cb.mu.Lock()
			if cb.state.Load().(State) == StateClosed {
				cb.transition(StateOpen)
			}
			cb.mu.Unlock()
		}
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state.Load().(State)
	if from == to {
		return
	}
	cb.state.Store(to)
	cb.stateChangedAt.Store(time.Now())
	if to == StateHalfOpen {
		cb.halfOpenInFlight = 0
		cb.halfOpenSuccesses = 0
		cb.halfOpenFailures = 0
	}
	cb.cfg.Logger.Info("circuit breaker state changed", map[string]interface{}{
		"name": cb.cfg.Name,
		"from": from.String(),
		"to":   to.String(),
	})
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() State { return cb.state.Load().(State) }

// Metrics reports the breaker's running counters for observability.
type Metrics struct {
	State      string
	ErrorRate  float64
	Total      uint64
	Rejected   uint64
}

func (cb *CircuitBreaker) Metrics() Metrics {
	return Metrics{
		State:     cb.State().String(),
		ErrorRate: cb.window.errorRate(),
		Total:     cb.total.Load(),
		Rejected:  cb.rejected.Load(),
	}
}

// Reset forces the breaker back to closed with a clean window, discarding
// all accumulated state. Intended for tests and manual operator recovery.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.window = newSlidingWindow(cb.cfg.WindowSize, cb.cfg.BucketCount)
	cb.transition(StateClosed)
}

type bucket struct {
	timestamp time.Time
	success   uint64
	failure   uint64
}

// slidingWindow is a rotating-bucket error-rate counter, the same shape the
// breaker above uses to decide when to trip: old buckets age out as time
// passes so a burst of failures from an hour ago doesn't keep a breaker
// open indefinitely.
type slidingWindow struct {
	mu         sync.Mutex
	buckets    []bucket
	windowSize time.Duration
	bucketSize time.Duration
	currentIdx int
	lastRotate time.Time
}

func newSlidingWindow(windowSize time.Duration, bucketCount int) *slidingWindow {
	now := time.Now()
	buckets := make([]bucket, bucketCount)
	for i := range buckets {
		buckets[i].timestamp = now
	}
	return &slidingWindow{
		buckets:    buckets,
		windowSize: windowSize,
		bucketSize: windowSize / time.Duration(bucketCount),
		lastRotate: now,
	}
}

func (sw *slidingWindow) rotate() {
	now := time.Now()
	elapsed := now.Sub(sw.lastRotate)
	if elapsed < sw.bucketSize {
		return
	}
	steps := int(elapsed / sw.bucketSize)
	if steps > len(sw.buckets) {
		steps = len(sw.buckets)
	}
	for i := 0; i < steps; i++ {
		sw.currentIdx = (sw.currentIdx + 1) % len(sw.buckets)
		sw.buckets[sw.currentIdx] = bucket{timestamp: now}
	}
	sw.lastRotate = now
}

func (sw *slidingWindow) recordSuccess() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotate()
	sw.buckets[sw.currentIdx].success++
}

func (sw *slidingWindow) recordFailure() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotate()
	sw.buckets[sw.currentIdx].failure++
}

func (sw *slidingWindow) counts() (success, failure uint64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	cutoff := time.Now().Add(-sw.windowSize)
	for _, b := range sw.buckets {
		if b.timestamp.After(cutoff) {
			success += b.success
			failure += b.failure
		}
	}
	return success, failure
}

func (sw *slidingWindow) total() uint64 {
	success, failure := sw.counts()
	return success + failure
}

func (sw *slidingWindow) errorRate() float64 {
	success, failure := sw.counts()
	total := success + failure
	if total == 0 {
		return 0
	}
	return float64(failure) / float64(total)
}

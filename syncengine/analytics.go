package syncengine

import (
	"context"
	"time"

	"github.com/flipsync/flipsync/decision"
)

func analyticsEvent(name string, payload map[string]interface{}) decision.Event {
	return decision.Event{Name: name, Payload: payload, Timestamp: time.Now()}
}

// failureEvent records one marketplace-scoped operational failure (a sync
// or ingestion error) observed by the inventory/order loops. The
// AnalyticsEngine and AlertingSystem correlate these without depending on
// an external metrics store.
type failureEvent struct {
	marketplace string
	at          time.Time
}

// maxTrackedFailures bounds the in-memory failure log so a marketplace
// stuck failing forever can't grow it unbounded between windows.
const maxTrackedFailures = 10000

func (e *Engine) recordFailure(marketplaceName string) {
	e.failureMu.Lock()
	defer e.failureMu.Unlock()
	e.failures = append(e.failures, failureEvent{marketplace: marketplaceName, at: time.Now()})
	if len(e.failures) > maxTrackedFailures {
		e.failures = e.failures[len(e.failures)-maxTrackedFailures:]
	}
}

// correlationCounts returns, per marketplace, the number of recorded
// failures within the trailing window and also prunes failures older than
// the longest window either loop cares about.
func (e *Engine) correlationCounts(window time.Duration) map[string]int {
	e.failureMu.Lock()
	defer e.failureMu.Unlock()

	cutoff := time.Now().Add(-window)
	counts := make(map[string]int)
	kept := e.failures[:0]
	for _, f := range e.failures {
		if f.at.After(cutoff) {
			counts[f.marketplace]++
			kept = append(kept, f)
		}
	}
	e.failures = kept
	return counts
}

// StartAnalyticsEngine launches the correlation loop: every
// config.Analytics.WindowHours it tallies failures per marketplace over
// the trailing config.Analytics.CorrelationWindow and publishes an
// analytics_window_computed event summarizing them. Idempotent.
func (e *Engine) StartAnalyticsEngine(ctx context.Context) error {
	e.analyticsMu.Lock()
	defer e.analyticsMu.Unlock()
	if e.analyticsRunning {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.analyticsCancel = cancel
	e.analyticsRunning = true

	e.analyticsWG.Add(1)
	go e.runAnalyticsLoop(loopCtx)
	return nil
}

// StopAnalyticsEngine cancels the correlation loop and awaits its exit.
// Idempotent.
func (e *Engine) StopAnalyticsEngine() error {
	e.analyticsMu.Lock()
	if !e.analyticsRunning {
		e.analyticsMu.Unlock()
		return nil
	}
	cancel := e.analyticsCancel
	e.analyticsRunning = false
	e.analyticsMu.Unlock()

	cancel()
	e.analyticsWG.Wait()
	return nil
}

func (e *Engine) runAnalyticsLoop(ctx context.Context) {
	defer e.analyticsWG.Done()
	windowHours := e.analytics.WindowHours
	if windowHours <= 0 {
		windowHours = 24
	}
	interval := time.Duration(windowHours) * time.Hour
	correlationWindow := e.analytics.CorrelationWindow
	if correlationWindow <= 0 {
		correlationWindow = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts := e.correlationCounts(correlationWindow)
			_ = e.publisher.Publish(analyticsEvent("analytics_window_computed", map[string]interface{}{
				"window_hours":       windowHours,
				"correlation_window": correlationWindow.String(),
				"failure_counts":     counts,
			}))
		}
	}
}

// StartAlertingSystem launches the alerting loop: every
// config.Analytics.CorrelationWindow it re-tallies failures per
// marketplace, and for any marketplace at or above
// config.Analytics.MaxAlertsPerCorrelation it publishes an alert_raised
// event, suppressing repeat alerts for the same marketplace within
// config.Analytics.SuppressionWindow. Idempotent.
func (e *Engine) StartAlertingSystem(ctx context.Context) error {
	e.alertMu.Lock()
	defer e.alertMu.Unlock()
	if e.alertRunning {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.alertCancel = cancel
	e.alertRunning = true

	e.alertWG.Add(1)
	go e.runAlertingLoop(loopCtx)
	return nil
}

// StopAlertingSystem cancels the alerting loop and awaits its exit.
// Idempotent.
func (e *Engine) StopAlertingSystem() error {
	e.alertMu.Lock()
	if !e.alertRunning {
		e.alertMu.Unlock()
		return nil
	}
	cancel := e.alertCancel
	e.alertRunning = false
	e.alertMu.Unlock()

	cancel()
	e.alertWG.Wait()
	return nil
}

func (e *Engine) runAlertingLoop(ctx context.Context) {
	defer e.alertWG.Done()
	correlationWindow := e.analytics.CorrelationWindow
	if correlationWindow <= 0 {
		correlationWindow = 15 * time.Minute
	}
	threshold := e.analytics.MaxAlertsPerCorrelation
	if threshold <= 0 {
		threshold = 10
	}
	suppressionWindow := e.analytics.SuppressionWindow
	if suppressionWindow <= 0 {
		suppressionWindow = 30 * time.Minute
	}

	ticker := time.NewTicker(correlationWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluateAlerts(correlationWindow, threshold, suppressionWindow)
		}
	}
}

func (e *Engine) evaluateAlerts(correlationWindow time.Duration, threshold int, suppressionWindow time.Duration) {
	counts := e.correlationCounts(correlationWindow)

	e.failureMu.Lock()
	defer e.failureMu.Unlock()

	now := time.Now()
	for marketplaceName, count := range counts {
		if count < threshold {
			continue
		}
		if last, ok := e.lastAlert[marketplaceName]; ok && now.Sub(last) < suppressionWindow {
			continue
		}
		e.lastAlert[marketplaceName] = now
		_ = e.publisher.Publish(analyticsEvent("alert_raised", map[string]interface{}{
			"marketplace":        marketplaceName,
			"failure_count":      count,
			"threshold":          threshold,
			"correlation_window": correlationWindow.String(),
		}))
	}
}

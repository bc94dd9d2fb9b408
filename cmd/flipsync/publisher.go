package main

import (
	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/decision"
	"github.com/flipsync/flipsync/telemetry"
)

// loggingPublisher is the Runtime's default decision.Publisher: it logs
// every event at debug level and counts it in the telemetry registry,
// rather than pushing to an external message bus (none is in scope).
type loggingPublisher struct {
	logger   core.Logger
	registry *telemetry.Registry
}

func newLoggingPublisher(logger core.Logger, registry *telemetry.Registry) *loggingPublisher {
	return &loggingPublisher{logger: logger, registry: registry}
}

func (p *loggingPublisher) Publish(e decision.Event) error {
	p.logger.Debug("decision event published", map[string]interface{}{
		"event": e.Name,
	})
	p.registry.Counter("decision_events_total", "event", e.Name)
	return nil
}

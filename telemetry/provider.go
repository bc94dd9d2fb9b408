// Package telemetry provides the OpenTelemetry-backed core.Telemetry
// implementation: tracing via a batched stdout exporter and metrics via an
// in-process registry that feeds FlipSync's structured logs. No OTLP
// collector is assumed to be running, so export stays local rather than
// reaching for a network sink.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/flipsync/flipsync/core"
)

// Provider implements core.Telemetry with a real OpenTelemetry tracer and
// the process-wide Registry for metrics.
type Provider struct {
	tracer        trace.Tracer
	traceProvider *sdktrace.TracerProvider
	registry      *Registry

	shutdownOnce sync.Once
}

// Option configures a Provider at construction time.
type Option func(*providerConfig)

type providerConfig struct {
	prettyPrint bool
}

// WithPrettyPrint pretty-prints exported spans, useful for local debugging.
func WithPrettyPrint() Option {
	return func(c *providerConfig) { c.prettyPrint = true }
}

// NewProvider builds a Provider that exports spans for serviceName to
// stdout in batches, and backs metrics with an in-process Registry that
// logs through logger.
func NewProvider(serviceName string, logger core.Logger, opts ...Option) (*Provider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("telemetry: service name is required")
	}
	cfg := providerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var exporterOpts []stdouttrace.Option
	if cfg.prettyPrint {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create stdout trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	registry := NewRegistry(serviceName, logger)
	core.SetMetricsRegistry(registry)

	return &Provider{
		tracer:        tp.Tracer(serviceName),
		traceProvider: tp,
		registry:      registry,
	}, nil
}

// StartSpan implements core.Telemetry.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric implements core.Telemetry by routing into the Registry using
// the same name-pattern heuristic the teacher's provider uses: durations
// and latencies become histograms, counts/totals become counters, anything
// else falls back to a gauge.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	kvs := make([]string, 0, len(labels)*2)
	for k, v := range labels {
		kvs = append(kvs, k, v)
	}
	switch {
	case hasSuffix(name, "duration", "latency", "seconds", "_ms"):
		p.registry.Histogram(name, value, kvs...)
	case hasSuffix(name, "count", "total", "errors", "success"):
		p.registry.Counter(name, kvs...)
	default:
		p.registry.Gauge(name, value, kvs...)
	}
}

func hasSuffix(name string, suffixes ...string) bool {
	for _, s := range suffixes {
		if len(name) >= len(s) && name[len(name)-len(s):] == s {
			return true
		}
	}
	return false
}

// Registry returns the Provider's MetricsRegistry.
func (p *Provider) Registry() *Registry { return p.registry }

// Shutdown flushes any pending spans. Safe to call more than once.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	p.shutdownOnce.Do(func() {
		err = p.traceProvider.Shutdown(ctx)
	})
	return err
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) { s.span.RecordError(err) }

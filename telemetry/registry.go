package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/flipsync/flipsync/core"
)

// Registry implements core.MetricsRegistry on top of the OpenTelemetry
// metrics SDK, caching one instrument per name the way the teacher's
// MetricInstruments does, backed by a ManualReader this package flushes
// into the structured logger instead of an external collector.
type Registry struct {
	serviceName string
	logger      core.Logger

	meter  metric.Meter
	reader *sdkmetric.ManualReader

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
}

// NewRegistry builds a Registry for serviceName, logging flushed metric
// summaries through logger.
func NewRegistry(serviceName string, logger core.Logger) *Registry {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return &Registry{
		serviceName: serviceName,
		logger:      logger,
		meter:       provider.Meter(serviceName),
		reader:      reader,
		counters:    make(map[string]metric.Int64Counter),
		gauges:      make(map[string]metric.Float64Counter),
		histograms:  make(map[string]metric.Float64Histogram),
	}
}

func attrsFromPairs(labels []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}

// Counter implements core.MetricsRegistry.
func (r *Registry) Counter(name string, labels ...string) {
	r.EmitWithContext(context.Background(), name, 1, labels...)
}

// Gauge implements core.MetricsRegistry. Gauges are recorded as a
// monotonic-unaware Float64Counter snapshot since the SDK's async gauge API
// requires a registered callback rather than a push model; the last pushed
// value is what a ManualReader.Collect picks up regardless.
func (r *Registry) Gauge(name string, value float64, labels ...string) {
	r.mu.Lock()
	g, ok := r.gauges[name]
	if !ok {
		var err error
		g, err = r.meter.Float64Counter(name)
		if err == nil {
			r.gauges[name] = g
		}
	}
	r.mu.Unlock()
	if g != nil {
		g.Add(context.Background(), value, metric.WithAttributes(attrsFromPairs(labels)...))
	}
}

// Histogram implements core.MetricsRegistry.
func (r *Registry) Histogram(name string, value float64, labels ...string) {
	r.mu.Lock()
	h, ok := r.histograms[name]
	if !ok {
		var err error
		h, err = r.meter.Float64Histogram(name)
		if err == nil {
			r.histograms[name] = h
		}
	}
	r.mu.Unlock()
	if h != nil {
		h.Record(context.Background(), value, metric.WithAttributes(attrsFromPairs(labels)...))
	}
}

// EmitWithContext implements core.MetricsRegistry.
func (r *Registry) EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
	r.mu.Lock()
	c, ok := r.counters[name]
	if !ok {
		var err error
		c, err = r.meter.Int64Counter(name)
		if err == nil {
			r.counters[name] = c
		}
	}
	r.mu.Unlock()
	if c != nil {
		c.Add(ctx, int64(value), metric.WithAttributes(attrsFromPairs(labels)...))
	}
}

// Flush collects the current metric snapshot from the SDK's ManualReader
// and logs one structured entry per data point. The Runtime does not call
// it; metrics are logged only when a caller invokes Flush.
func (r *Registry) Flush(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return err
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			r.logger.InfoWithContext(ctx, "metric flushed", map[string]interface{}{
				"service": r.serviceName,
				"metric":  m.Name,
			})
		}
	}
	return nil
}

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipsync/flipsync/core"
)

func TestNewProviderRejectsEmptyServiceName(t *testing.T) {
	_, err := NewProvider("", core.NoOpLogger{})
	assert.Error(t, err)
}

func TestProviderStartSpanAndRecordMetric(t *testing.T) {
	p, err := NewProvider("flipsync-test", core.NoOpLogger{})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	ctx, span := p.StartSpan(context.Background(), "test.op")
	span.SetAttribute("key", "value")
	span.RecordError(nil)
	span.End()
	assert.NotNil(t, ctx)

	p.RecordMetric("request_duration_seconds", 0.5, map[string]string{"op": "test"})
	p.RecordMetric("request_count", 1, map[string]string{"op": "test"})
	p.RecordMetric("queue_depth", 3, map[string]string{"queue": "fulfillment"})
}

func TestRegistryFlushCollectsWithoutError(t *testing.T) {
	r := NewRegistry("flipsync-test", core.NoOpLogger{})
	r.Counter("widgets_total", "kind", "sprocket")
	r.Gauge("queue_depth", 7, "queue", "inventory")
	r.Histogram("latency_ms", 12.5, "op", "sync")

	require.NoError(t, r.Flush(context.Background()))
}

func TestRegistrySatisfiesGlobalMetricsRegistrySeam(t *testing.T) {
	r := NewRegistry("flipsync-test", core.NoOpLogger{})
	core.SetMetricsRegistry(r)
	defer core.SetMetricsRegistry(nil)

	got := core.GetGlobalMetricsRegistry()
	require.NotNil(t, got)
	got.EmitWithContext(context.Background(), "decisions_tracked_total", 1, "type", "action")
}

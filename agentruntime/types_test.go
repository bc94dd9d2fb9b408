package agentruntime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipsync/flipsync/core"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("market-1", "market", []string{"price_analysis"})

	entry, ok := r.Get("market-1")
	assert.True(t, ok)
	assert.Equal(t, AgentIdle, entry.Status)
	assert.Equal(t, []string{"price_analysis"}, entry.Capabilities)
}

func TestRegistrySetStatus(t *testing.T) {
	r := NewRegistry()
	r.Register("market-1", "market", nil)
	r.SetStatus("market-1", AgentBusy)

	entry, ok := r.Get("market-1")
	assert.True(t, ok)
	assert.Equal(t, AgentBusy, entry.Status)
}

func TestRegistryRecordOutcomeRecomputesSuccessRate(t *testing.T) {
	r := NewRegistry()
	r.Register("market-1", "market", nil)

	r.RecordOutcome("market-1", true, 2*time.Second)
	r.RecordOutcome("market-1", true, 4*time.Second)
	m := r.RecordOutcome("market-1", false, 3*time.Second)

	assert.Equal(t, 3, m.TotalTasks)
	assert.Equal(t, 2, m.CompletedTasks)
	assert.Equal(t, 1, m.FailedTasks)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate, 1e-9)
	assert.Equal(t, 3*time.Second, m.AvgResponseTime)
}

func TestRegistryConcurrentOutcomesPerAgentSerialized(t *testing.T) {
	r := NewRegistry()
	r.Register("market-1", "market", nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordOutcome("market-1", true, time.Second)
		}()
	}
	wg.Wait()

	m, ok := r.Metrics("market-1")
	assert.True(t, ok)
	assert.Equal(t, 100, m.TotalTasks)
	assert.Equal(t, 100, m.CompletedTasks)
}

func TestRegistryMirrorsStateAndRestoresOnNewInstance(t *testing.T) {
	mirror := core.NewInMemoryStore()

	r1 := NewRegistry(WithMirror(mirror))
	r1.Register("market-1", "market", []string{"price_analysis"})
	r1.RecordOutcome("market-1", true, time.Second)
	r1.SetStatus("market-1", AgentBusy)

	r2 := NewRegistry(WithMirror(mirror))
	require.NoError(t, r2.LoadFromMirror(context.Background(), []string{"market-1", "unknown-agent"}))

	entry, ok := r2.Get("market-1")
	require.True(t, ok)
	assert.Equal(t, AgentBusy, entry.Status)

	metrics, ok := r2.Metrics("market-1")
	require.True(t, ok)
	assert.Equal(t, 1, metrics.TotalTasks)

	_, ok = r2.Get("unknown-agent")
	assert.False(t, ok)
}

func TestRegistryWithoutMirrorLoadFromMirrorIsNoOp(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.LoadFromMirror(context.Background(), []string{"anything"}))
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Register("market-1", "market", []string{"a"})

	snap := r.Snapshot()
	snap[0].Capabilities[0] = "mutated"

	entry, _ := r.Get("market-1")
	assert.Equal(t, "a", entry.Capabilities[0])
}

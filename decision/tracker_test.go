package decision

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDecision(id string, status Status) *Decision {
	return &Decision{
		ID:         id,
		Type:       TypeSelection,
		Confidence: 0.6,
		Metadata:   Metadata{Status: status, MaxRetries: 3},
	}
}

func TestTrackerTrackAndGet(t *testing.T) {
	tr := NewTracker(nil, 0)
	d := newTestDecision("d1", StatusPending)
	require.NoError(t, tr.Track(d, false))

	got, err := tr.Get("d1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Metadata.Status)

	agg := tr.Aggregates()
	assert.Equal(t, 1, agg.TotalDecisions)
	assert.Equal(t, 1, agg.DecisionsByStatus[StatusPending])
	assert.Equal(t, 1, agg.DecisionsByType[TypeSelection])
	assert.InDelta(t, 0.6, agg.AverageConfidence, 1e-9)
}

func TestTrackerGetMissing(t *testing.T) {
	tr := NewTracker(nil, 0)
	_, err := tr.Get("missing")
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrDecisionNotFound))
}

func TestTrackerUpdateStatusLegalTransition(t *testing.T) {
	tr := NewTracker(nil, 0)
	d := newTestDecision("d1", StatusPending)
	require.NoError(t, tr.Track(d, false))

	updated, err := tr.UpdateStatus("d1", StatusValidating, false)
	require.NoError(t, err)
	assert.Equal(t, StatusValidating, updated.Metadata.Status)

	agg := tr.Aggregates()
	assert.Equal(t, 0, agg.DecisionsByStatus[StatusPending])
	assert.Equal(t, 1, agg.DecisionsByStatus[StatusValidating])
}

func TestTrackerUpdateStatusIllegalTransition(t *testing.T) {
	tr := NewTracker(nil, 0)
	d := newTestDecision("d1", StatusPending)
	require.NoError(t, tr.Track(d, false))

	_, err := tr.UpdateStatus("d1", StatusCompleted, false)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrDecisionValidationFailed))
}

func TestTrackerOfflineBufferCap(t *testing.T) {
	tr := NewTracker(nil, 1)
	require.NoError(t, tr.Track(newTestDecision("d1", StatusPending), true))
	err := tr.Track(newTestDecision("d2", StatusPending), true)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrOfflineBufferFull))
}

func TestTrackerSyncOfflineDecisionsDrainsInOrder(t *testing.T) {
	var published []string
	var mu sync.Mutex
	pub := FuncPublisher(func(e Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e.Payload["decision_id"].(string))
		return nil
	})

	tr := NewTracker(pub, 0)
	require.NoError(t, tr.Track(newTestDecision("d1", StatusPending), true))
	require.NoError(t, tr.Track(newTestDecision("d2", StatusPending), true))
	assert.Equal(t, 2, tr.OfflineQueueSize())

	n, err := tr.SyncOfflineDecisions()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"d1", "d2"}, published)
	assert.Equal(t, 0, tr.OfflineQueueSize())

	n, err = tr.SyncOfflineDecisions()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// Concurrent UpdateStatus calls against distinct decision ids must not
// corrupt the shared aggregate counters.
func TestTrackerConcurrentUpdatesAreLinearizedPerID(t *testing.T) {
	tr := NewTracker(nil, 0)
	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, tr.Track(newTestDecision(string(rune('a'+i)), StatusPending), false))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			_, _ = tr.UpdateStatus(id, StatusValidating, false)
			_, _ = tr.UpdateStatus(id, StatusApproved, false)
		}()
	}
	wg.Wait()

	agg := tr.Aggregates()
	assert.Equal(t, n, agg.DecisionsByStatus[StatusApproved])
	assert.Equal(t, 0, agg.DecisionsByStatus[StatusPending])
}

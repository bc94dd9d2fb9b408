package decision

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T, capacity int) (*RedisOfflineStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisOfflineStore(client, "flipsync:offline:decisions", capacity), mr
}

func TestRedisOfflineStoreAppendAndDrainPreservesOrder(t *testing.T) {
	store, _ := newMiniredisStore(t, 0)

	require.NoError(t, store.Append(newEvent("decision_tracked", map[string]interface{}{"decision_id": "d-1"})))
	require.NoError(t, store.Append(newEvent("decision_tracked", map[string]interface{}{"decision_id": "d-2"})))
	require.NoError(t, store.Append(newEvent("decision_tracked", map[string]interface{}{"decision_id": "d-3"})))

	assert.Equal(t, 3, store.Size())
	drained := store.DrainAll()
	require.Len(t, drained, 3)
	assert.Equal(t, "d-1", drained[0].Payload["decision_id"])
	assert.Equal(t, "d-2", drained[1].Payload["decision_id"])
	assert.Equal(t, "d-3", drained[2].Payload["decision_id"])

	assert.Equal(t, 0, store.Size())
	assert.Empty(t, store.DrainAll())
}

func TestRedisOfflineStoreRejectsOverCapacity(t *testing.T) {
	store, _ := newMiniredisStore(t, 1)

	require.NoError(t, store.Append(newEvent("decision_tracked", nil)))
	err := store.Append(newEvent("decision_tracked", nil))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrOfflineBufferFull))
}

func TestTrackerWithRedisOfflineStoreSurvivesAcrossTrackerInstances(t *testing.T) {
	store, _ := newMiniredisStore(t, 0)

	tracker1 := NewTracker(NoOpPublisher{}, 0, WithOfflineStore(store))
	d := &Decision{ID: "d-redis-1", Type: TypeAction, Action: "noop", Confidence: 0.9}
	require.NoError(t, tracker1.Track(d, true))
	assert.Equal(t, 1, tracker1.OfflineQueueSize())

	tracker2 := NewTracker(NoOpPublisher{}, 0, WithOfflineStore(store))
	assert.Equal(t, 1, tracker2.OfflineQueueSize())

	n, err := tracker2.SyncOfflineDecisions()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

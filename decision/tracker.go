package decision

import (
	"sync"
	"time"
)

// HistoryEntry is one append-only record of a decision's lifecycle: created
// or transitioned to a new status.
type HistoryEntry struct {
	DecisionID string    `json:"decision_id"`
	Status     Status    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Aggregates are the incrementally-maintained global counters: total count,
// per-status/per-type breakdowns, and a rolling average confidence.
type Aggregates struct {
	TotalDecisions    int
	DecisionsByStatus map[Status]int
	DecisionsByType   map[Type]int
	AverageConfidence float64

	confidenceSum float64
}

// Tracker is the in-memory decision store: a table keyed by decision_id,
// an append-only history sequence, and incrementally-maintained aggregates.
// It is the sole component permitted to advance a Decision's status,
// enforcing legal transitions through UpdateStatus.
//
// Per-decision-id updates are linearized through a sharded lock table so
// concurrent UpdateStatus calls on different ids never block each other,
// while calls on the same id observe-then-write atomically.
type Tracker struct {
	mu        sync.RWMutex
	decisions map[string]*Decision
	history   []HistoryEntry
	agg       Aggregates

	shardMu sync.Mutex
	shards  map[string]*sync.Mutex

	publisher Publisher
	offline   OfflineStore
}

// TrackerOption configures optional Tracker construction parameters.
type TrackerOption func(*Tracker)

// WithOfflineStore swaps the default in-memory offline buffer for a
// custom OfflineStore, e.g. RedisOfflineStore for durability across
// process restarts.
func WithOfflineStore(store OfflineStore) TrackerOption {
	return func(t *Tracker) { t.offline = store }
}

// NewTracker constructs a Tracker. maxOfflineBuffer caps the default
// in-memory offline queue; 0 means unbounded. Pass WithOfflineStore to
// use a durable store instead.
func NewTracker(publisher Publisher, maxOfflineBuffer int, opts ...TrackerOption) *Tracker {
	if publisher == nil {
		publisher = NoOpPublisher{}
	}
	t := &Tracker{
		decisions: make(map[string]*Decision),
		agg: Aggregates{
			DecisionsByStatus: make(map[Status]int),
			DecisionsByType:   make(map[Type]int),
		},
		shards:    make(map[string]*sync.Mutex),
		publisher: publisher,
		offline:   newMemoryOfflineStore(maxOfflineBuffer),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) shardLock(id string) *sync.Mutex {
	t.shardMu.Lock()
	defer t.shardMu.Unlock()
	m, ok := t.shards[id]
	if !ok {
		m = &sync.Mutex{}
		t.shards[id] = m
	}
	return m
}

// Track inserts a new Decision, initializes its aggregates, and appends a
// history entry for its starting status. Publication is live unless
// offline is true, in which case the decision_tracked event is buffered for
// a later SyncOfflineDecisions call.
func (t *Tracker) Track(d *Decision, offline bool) error {
	lock := t.shardLock(d.ID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	if d.Metadata.CreatedAt.IsZero() {
		d.Metadata.CreatedAt = now
	}
	d.Metadata.UpdatedAt = now

	t.mu.Lock()
	t.decisions[d.ID] = d.Clone()
	t.agg.TotalDecisions++
	t.agg.DecisionsByStatus[d.Metadata.Status]++
	t.agg.DecisionsByType[d.Type]++
	t.agg.confidenceSum += d.Confidence
	t.agg.AverageConfidence = t.agg.confidenceSum / float64(t.agg.TotalDecisions)
	t.history = append(t.history, HistoryEntry{DecisionID: d.ID, Status: d.Metadata.Status, Timestamp: now})
	t.mu.Unlock()

	return t.publish(newEvent("decision_tracked", map[string]interface{}{
		"decision_id": d.ID,
		"status":      string(d.Metadata.Status),
		"type":        string(d.Type),
		"confidence":  d.Confidence,
		"timestamp":   now.Format(time.RFC3339),
	}), offline)
}

// Get returns a copy of the tracked Decision, or ErrDecisionNotFound.
func (t *Tracker) Get(id string) (*Decision, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.decisions[id]
	if !ok {
		return nil, NewError(ErrDecisionNotFound, "decision not found: "+id, nil)
	}
	return d.Clone(), nil
}

// UpdateStatus advances a tracked decision to newStatus, enforcing the
// decision state machine and decrementing/incrementing the relevant
// per-status aggregate counters atomically with the write.
func (t *Tracker) UpdateStatus(id string, newStatus Status, offline bool) (*Decision, error) {
	lock := t.shardLock(id)
	lock.Lock()
	defer lock.Unlock()

	t.mu.Lock()
	d, ok := t.decisions[id]
	if !ok {
		t.mu.Unlock()
		return nil, NewError(ErrDecisionNotFound, "decision not found: "+id, nil)
	}
	if !CanTransition(d.Metadata.Status, newStatus) {
		t.mu.Unlock()
		return nil, NewError(ErrDecisionValidationFailed, "illegal transition", map[string]interface{}{
			"from": string(d.Metadata.Status),
			"to":   string(newStatus),
		})
	}

	oldStatus := d.Metadata.Status
	t.agg.DecisionsByStatus[oldStatus]--
	d.Metadata.Status = newStatus
	d.Metadata.UpdatedAt = time.Now()
	t.agg.DecisionsByStatus[newStatus]++
	t.decisions[id] = d
	t.history = append(t.history, HistoryEntry{DecisionID: id, Status: newStatus, Timestamp: d.Metadata.UpdatedAt})
	result := d.Clone()
	t.mu.Unlock()

	err := t.publish(newEvent("decision_status_updated", map[string]interface{}{
		"decision_id": id,
		"from":        string(oldStatus),
		"to":          string(newStatus),
		"timestamp":   result.Metadata.UpdatedAt.Format(time.RFC3339),
	}), offline)
	if err != nil {
		// Publication failures never roll back the state change above.
		_ = err
	}
	return result, nil
}

// BumpRetry increments retry_count up to max_retries, returning false once
// the ceiling is reached.
func (t *Tracker) BumpRetry(id string) (bool, error) {
	lock := t.shardLock(id)
	lock.Lock()
	defer lock.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.decisions[id]
	if !ok {
		return false, NewError(ErrDecisionNotFound, "decision not found: "+id, nil)
	}
	if d.Metadata.RetryCount >= d.Metadata.MaxRetries {
		return false, nil
	}
	d.Metadata.RetryCount++
	d.Metadata.UpdatedAt = time.Now()
	return true, nil
}

// HistoryFilter narrows GetHistory to a subset of entries.
type HistoryFilter struct {
	DecisionID string
	Status     Status
}

// History returns a snapshot copy of the append-only history, optionally
// filtered.
func (t *Tracker) History(filter *HistoryFilter) []HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]HistoryEntry, 0, len(t.history))
	for _, entry := range t.history {
		if filter != nil {
			if filter.DecisionID != "" && entry.DecisionID != filter.DecisionID {
				continue
			}
			if filter.Status != "" && entry.Status != filter.Status {
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

// Aggregates returns a copy of the running aggregates.
func (t *Tracker) Aggregates() Aggregates {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.agg
	out.DecisionsByStatus = make(map[Status]int, len(t.agg.DecisionsByStatus))
	for k, v := range t.agg.DecisionsByStatus {
		out.DecisionsByStatus[k] = v
	}
	out.DecisionsByType = make(map[Type]int, len(t.agg.DecisionsByType))
	for k, v := range t.agg.DecisionsByType {
		out.DecisionsByType[k] = v
	}
	return out
}

func (t *Tracker) publish(e Event, offline bool) error {
	if offline {
		return t.enqueueOffline(e)
	}
	return t.publisher.Publish(e)
}

func (t *Tracker) enqueueOffline(e Event) error {
	return t.offline.Append(e)
}

// SyncOfflineDecisions drains the offline queue, republishing every
// buffered event in its original order, then clears the queue. A second
// call with nothing queued publishes zero events.
func (t *Tracker) SyncOfflineDecisions() (int, error) {
	queued := t.offline.DrainAll()
	for _, e := range queued {
		if err := t.publisher.Publish(e); err != nil {
			// Keep draining rather than abandoning the rest of the queue.
			continue
		}
	}
	return len(queued), nil
}

// OfflineQueueSize reports how many events are currently buffered.
func (t *Tracker) OfflineQueueSize() int {
	return t.offline.Size()
}

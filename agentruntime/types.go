// Package agentruntime owns the agent registry, the inter-agent message
// envelope, and performance-metric bookkeeping shared by the Executive
// orchestrator and every specialist agent. The registry is a single shared
// resource: the Runtime registers agents, the Executive updates their status
// and performance metrics, and specialists observe it through read-only
// snapshots.
package agentruntime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/flipsync/flipsync/core"
)

// MessageType enumerates the kinds of coordination messages agents
// exchange through the Executive.
type MessageType string

const (
	MessageTaskAssignment      MessageType = "task_assignment"
	MessageStatusUpdate        MessageType = "status_update"
	MessageCoordinationRequest MessageType = "coordination_request"
	MessagePerformanceReport   MessageType = "performance_report"
	MessageStrategicGuidance   MessageType = "strategic_guidance"
	MessageInventoryRequest    MessageType = "inventory_request"
	MessageShippingRequest     MessageType = "shipping_request"
	MessageFulfillmentRequest  MessageType = "fulfillment_request"
	MessageSupplyChainRequest  MessageType = "supply_chain_request"
	MessageGeneral             MessageType = "general"
)

// Priority is the urgency of a coordination message.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// CoordinationMessage is one inter-agent message routed through the
// Executive.
type CoordinationMessage struct {
	FromAgent        string                 `json:"from_agent"`
	ToAgent          string                 `json:"to_agent"`
	MessageType      MessageType            `json:"message_type"`
	Content          map[string]interface{} `json:"content"`
	Priority         Priority               `json:"priority"`
	RequiresResponse bool                   `json:"requires_response"`
	Timestamp        time.Time              `json:"timestamp"`
}

// NewCoordinationMessage stamps Timestamp at creation time.
func NewCoordinationMessage(from, to string, msgType MessageType, content map[string]interface{}, priority Priority, requiresResponse bool) CoordinationMessage {
	return CoordinationMessage{
		FromAgent:        from,
		ToAgent:          to,
		MessageType:      msgType,
		Content:          content,
		Priority:         priority,
		RequiresResponse: requiresResponse,
		Timestamp:        time.Now(),
	}
}

// AgentStatus is the operational state of a registered agent.
type AgentStatus string

const (
	AgentActive AgentStatus = "active"
	AgentBusy   AgentStatus = "busy"
	AgentIdle   AgentStatus = "idle"
	AgentError  AgentStatus = "error"
)

// RegistryEntry is one agent's registration record.
type RegistryEntry struct {
	AgentID      string      `json:"agent_id"`
	Type         string      `json:"type"`
	Status       AgentStatus `json:"status"`
	Capabilities []string    `json:"capabilities"`
	LastActive   time.Time   `json:"last_active"`
}

// PerformanceMetrics are per-agent counters updated atomically on every
// coordination outcome.
type PerformanceMetrics struct {
	TotalTasks      int           `json:"total_tasks"`
	CompletedTasks  int           `json:"completed_tasks"`
	FailedTasks     int           `json:"failed_tasks"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`

	responseTimeSum time.Duration
}

func (m *PerformanceMetrics) recompute() {
	if m.TotalTasks > 0 {
		m.SuccessRate = float64(m.CompletedTasks) / float64(m.TotalTasks)
		m.AvgResponseTime = m.responseTimeSum / time.Duration(m.TotalTasks)
	}
}

// Registry is the Executive's exclusively-owned table of agents and their
// performance metrics, keyed by agent_id. Per-agent updates are serialized
// through a sharded lock; distinct agents update independently.
//
// Registry is single-process by design: FlipSync runs one Executive per
// deployment, not a distributed discovery mesh. mirror is an optional
// best-effort durability layer (see WithMirror) so a restart can recover
// agent state without depending on any external coordination service.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*RegistryEntry
	metrics map[string]*PerformanceMetrics

	shardMu sync.Mutex
	shards  map[string]*sync.Mutex

	mirror core.Memory
}

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*Registry)

// WithMirror makes every Register/SetStatus/RecordOutcome best-effort
// persist the affected agent's state to m, keyed by agent_id. Mirror writes
// never block or fail the in-memory operation; a write error is simply
// dropped; this is a recovery aid, not a consistency guarantee.
func WithMirror(m core.Memory) RegistryOption {
	return func(r *Registry) { r.mirror = m }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		agents:  make(map[string]*RegistryEntry),
		metrics: make(map[string]*PerformanceMetrics),
		shards:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type mirroredAgent struct {
	Entry   RegistryEntry      `json:"entry"`
	Metrics PerformanceMetrics `json:"metrics"`
}

// mirrorSave persists agentID's current entry and metrics, if a mirror is
// configured. Must be called without r.mu held (it re-acquires it via Get).
func (r *Registry) mirrorSave(agentID string) {
	if r.mirror == nil {
		return
	}
	entry, ok := r.Get(agentID)
	if !ok {
		return
	}
	metrics, _ := r.Metrics(agentID)
	payload, err := json.Marshal(mirroredAgent{Entry: entry, Metrics: metrics})
	if err != nil {
		return
	}
	_ = r.mirror.Set(context.Background(), agentID, string(payload), 0)
}

// LoadFromMirror restores every agent previously mirrored under agentIDs,
// skipping any id with no mirrored state (never registered, or the mirror
// doesn't have it). Intended to be called once at startup before any agent
// traffic is routed through the Registry.
func (r *Registry) LoadFromMirror(ctx context.Context, agentIDs []string) error {
	if r.mirror == nil {
		return nil
	}
	for _, agentID := range agentIDs {
		raw, err := r.mirror.Get(ctx, agentID)
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}
		var m mirroredAgent
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}

		r.mu.Lock()
		entry := m.Entry
		r.agents[agentID] = &entry
		metrics := m.Metrics
		r.metrics[agentID] = &metrics
		r.mu.Unlock()
	}
	return nil
}

func (r *Registry) shardLock(agentID string) *sync.Mutex {
	r.shardMu.Lock()
	defer r.shardMu.Unlock()
	m, ok := r.shards[agentID]
	if !ok {
		m = &sync.Mutex{}
		r.shards[agentID] = m
	}
	return m
}

// Register adds or replaces an agent's registration entry.
func (r *Registry) Register(agentID, agentType string, capabilities []string) {
	lock := r.shardLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	r.agents[agentID] = &RegistryEntry{
		AgentID:      agentID,
		Type:         agentType,
		Status:       AgentIdle,
		Capabilities: append([]string(nil), capabilities...),
		LastActive:   time.Now(),
	}
	if _, ok := r.metrics[agentID]; !ok {
		r.metrics[agentID] = &PerformanceMetrics{}
	}
	r.mu.Unlock()

	r.mirrorSave(agentID)
}

// SetStatus updates an agent's status and bumps last_active.
func (r *Registry) SetStatus(agentID string, status AgentStatus) {
	lock := r.shardLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	_, known := r.agents[agentID]
	if known {
		entry := r.agents[agentID]
		entry.Status = status
		entry.LastActive = time.Now()
	}
	r.mu.Unlock()

	if known {
		r.mirrorSave(agentID)
	}
}

// Get returns a copy of an agent's registration entry.
func (r *Registry) Get(agentID string) (RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.agents[agentID]
	if !ok {
		return RegistryEntry{}, false
	}
	return cloneEntry(entry), true
}

// Snapshot returns a read-only copy of every registered agent.
func (r *Registry) Snapshot() []RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegistryEntry, 0, len(r.agents))
	for _, entry := range r.agents {
		out = append(out, cloneEntry(entry))
	}
	return out
}

func cloneEntry(entry *RegistryEntry) RegistryEntry {
	clone := *entry
	clone.Capabilities = append([]string(nil), entry.Capabilities...)
	return clone
}

// RecordOutcome increments an agent's task counters for a completed
// coordination outcome and recomputes success_rate/avg_response_time.
func (r *Registry) RecordOutcome(agentID string, success bool, responseTime time.Duration) PerformanceMetrics {
	lock := r.shardLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	m, ok := r.metrics[agentID]
	if !ok {
		m = &PerformanceMetrics{}
		r.metrics[agentID] = m
	}
	m.TotalTasks++
	m.responseTimeSum += responseTime
	if success {
		m.CompletedTasks++
	} else {
		m.FailedTasks++
	}
	m.recompute()
	result := *m
	r.mu.Unlock()

	r.mirrorSave(agentID)
	return result
}

// Metrics returns a copy of an agent's current performance metrics.
func (r *Registry) Metrics(agentID string) (PerformanceMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[agentID]
	if !ok {
		return PerformanceMetrics{}, false
	}
	return *m, true
}

// MetricsSnapshot returns a read-only copy of every agent's metrics, keyed
// by agent_id.
func (r *Registry) MetricsSnapshot() map[string]PerformanceMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]PerformanceMetrics, len(r.metrics))
	for id, m := range r.metrics {
		out[id] = *m
	}
	return out
}

// Package decision implements the decision model and store, the decision
// pipeline (Maker -> Validator -> Tracker -> Executor -> Feedback ->
// Learner), and its offline-capable execution path.
package decision

import "time"

// Type enumerates the kinds of decisions an agent can make.
type Type string

const (
	TypeAction         Type = "action"
	TypeRecommendation Type = "recommendation"
	TypeOptimization   Type = "optimization"
	TypeAllocation     Type = "allocation"
	TypePrioritization Type = "prioritization"
	TypeScheduling     Type = "scheduling"
	TypeSelection      Type = "selection"
	TypeClassification Type = "classification"
	TypePrediction     Type = "prediction"
	TypeCustom         Type = "custom"
)

// Status is a node in the decision state machine:
//
//	PENDING -> VALIDATING -> {APPROVED|REJECTED}
//	APPROVED -> EXECUTING -> {COMPLETED|FAILED}
//	terminal: COMPLETED, FAILED, REJECTED, CANCELED, EXPIRED
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidating Status = "validating"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusExecuting  Status = "executing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
	StatusExpired    Status = "expired"
)

// IsTerminal reports whether no further transitions are legal from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// transitions enumerates the legal next-states for every status. UpdateStatus
// in tracker.go is the sole enforcement point.
var transitions = map[Status][]Status{
	StatusPending:    {StatusValidating, StatusCanceled, StatusExpired},
	StatusValidating: {StatusApproved, StatusRejected, StatusCanceled, StatusExpired},
	StatusApproved:   {StatusExecuting, StatusCanceled, StatusExpired},
	StatusExecuting:  {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Metadata carries the bookkeeping fields attached to every Decision:
// correlation/causation for tracing a chain of decisions back to its
// trigger, routing (source/target), retry accounting, and timestamps.
type Metadata struct {
	CorrelationID string    `json:"correlation_id"`
	CausationID   string    `json:"causation_id"`
	Source        string    `json:"source"`
	Target        string    `json:"target"`
	Status        Status    `json:"status"`
	RetryCount    int       `json:"retry_count"`
	MaxRetries    int       `json:"max_retries"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Decision is the immutable core value produced by the pipeline. Confidence
// is set once at creation time (by the Maker) and never mutated in place;
// learning-driven bias is applied to the *next* decision via
// learning_adjustments in the Maker's context, not by rewriting past
// decisions.
type Decision struct {
	ID               string                 `json:"decision_id"`
	Type             Type                   `json:"decision_type"`
	Action           string                 `json:"action"`
	Confidence       float64                `json:"confidence"`
	Reasoning        string                 `json:"reasoning"`
	Alternatives     []string               `json:"alternatives"`
	Context          map[string]interface{} `json:"context"`
	BatteryEfficient bool                   `json:"battery_efficient"`
	NetworkEfficient bool                   `json:"network_efficient"`
	Metadata         Metadata               `json:"metadata"`
}

// Clone returns a deep-enough copy of d: Context/Alternatives are copied so
// callers can't mutate state owned by the Tracker through a returned value.
func (d *Decision) Clone() *Decision {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Alternatives = append([]string(nil), d.Alternatives...)
	clone.Context = cloneMap(d.Context)
	return &clone
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Option is one candidate considered by the Maker.
type Option struct {
	ID          string                 `json:"id"`
	Value       *float64               `json:"value,omitempty"`
	BatteryCost *float64               `json:"battery_cost,omitempty"`
	NetworkCost *float64               `json:"network_cost,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Constraints filters the candidate Options before scoring. Only the four
// recognized keys are interpreted; anything else is ignored rather than
// rejected, keeping the caller's map schema-less.
type Constraints struct {
	MinValue      *float64
	MaxValue      *float64
	AllowedValues []string
	RequiredTags  []string
}

// Satisfies reports whether opt survives every constraint in c.
func (c *Constraints) Satisfies(opt Option) bool {
	if c == nil {
		return true
	}
	if c.MinValue != nil && (opt.Value == nil || *opt.Value < *c.MinValue) {
		return false
	}
	if c.MaxValue != nil && (opt.Value == nil || *opt.Value > *c.MaxValue) {
		return false
	}
	if len(c.AllowedValues) > 0 && !contains(c.AllowedValues, opt.ID) {
		return false
	}
	if len(c.RequiredTags) > 0 {
		for _, required := range c.RequiredTags {
			if !contains(opt.Tags, required) {
				return false
			}
		}
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// Package approval implements the bridge that turns agent responses
// flagged requires_approval into tracked decisions routed through the
// decision pipeline, and resolves them once a human (or auto-approval
// policy) acts on them.
package approval

import (
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/flipsync/flipsync/agentruntime"
)

// AgentResponse is the same shape a specialist agent returns, so a Router
// can route the value it got back without a conversion step.
type AgentResponse = agentruntime.AgentResponse

type responseMetadata struct {
	RequiresApproval bool                   `mapstructure:"requires_approval"`
	RequestType      string                 `mapstructure:"request_type"`
	Data             map[string]interface{} `mapstructure:"data"`
}

func decodeMetadata(raw map[string]interface{}) responseMetadata {
	var m responseMetadata
	_ = mapstructure.Decode(raw, &m)
	return m
}

// Policy is the per-agent-type approval policy.
type Policy struct {
	AutoApproveThreshold float64
	HumanRequiredTypes   []string
	EscalationThreshold  float64
}

func (p Policy) requiresHuman(decisionType string) bool {
	for _, t := range p.HumanRequiredTypes {
		if t == decisionType {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an AgentDecision record.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

// AgentDecision is the persisted record of one approval-routed response.
type AgentDecision struct {
	ApprovalID         string    `json:"approval_id"`
	AgentType          string    `json:"agent_type"`
	DecisionType       string    `json:"decision_type"`
	Confidence         float64   `json:"confidence"`
	Status             Status    `json:"status"`
	EscalationRequired bool      `json:"escalation_required"`
	PipelineDecisionID string    `json:"pipeline_decision_id,omitempty"`
	ResponseText       string    `json:"response_text"`
	ApprovedBy         string    `json:"approved_by,omitempty"`
	RejectedBy         string    `json:"rejected_by,omitempty"`
	RejectionReason    string    `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

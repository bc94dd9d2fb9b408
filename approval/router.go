package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flipsync/flipsync/decision"
)

// decisionTypeTable derives a decision_type from agent_type + request_type.
// Entries not present fall back to "<agent_type>_decision".
var decisionTypeTable = map[string]map[string]string{
	"content": {
		"generate": "content_generation",
	},
	"logistics": {
		"shipping": "shipping_optimization",
	},
}

func deriveDecisionType(agentType, requestType string) string {
	if agentType == "executive" {
		return "strategic_decision"
	}
	if byRequest, ok := decisionTypeTable[agentType]; ok {
		if dt, ok := byRequest[requestType]; ok {
			return dt
		}
	}
	return agentType + "_decision"
}

// defaultPolicies seeds the per-agent-type policy table for content,
// logistics, and executive agents.
func defaultPolicies() map[string]Policy {
	return map[string]Policy{
		"content": {
			AutoApproveThreshold: 0.9,
			HumanRequiredTypes:   []string{"template_changes"},
			EscalationThreshold:  0.4,
		},
		"logistics": {
			AutoApproveThreshold: 0.85,
			HumanRequiredTypes:   nil,
			EscalationThreshold:  0.4,
		},
		"executive": {
			AutoApproveThreshold: 0.8,
			HumanRequiredTypes:   []string{"strategic_decision"},
			EscalationThreshold:  0.5,
		},
	}
}

// Router intercepts AgentResponses carrying requires_approval=true,
// classifies and auto-approves (or routes to a human) per a policy table,
// and records an auditable pipeline Decision for every response it handles.
type Router struct {
	mu       sync.RWMutex
	policies map[string]Policy
	repo     Repository
	pipeline *decision.Pipeline
}

// NewRouter wires a Router around repo (required) and an optional
// pipeline — when nil, Route still classifies/persists but skips creating
// an auditable pipeline decision, and ApproveDecision/RejectDecision never
// touch a pipeline.
func NewRouter(repo Repository, pipeline *decision.Pipeline) *Router {
	return &Router{
		policies: defaultPolicies(),
		repo:     repo,
		pipeline: pipeline,
	}
}

// SetPolicy overrides (or adds) the policy for agentType.
func (r *Router) SetPolicy(agentType string, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[agentType] = p
}

func (r *Router) policyFor(agentType string) Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.policies[agentType]; ok {
		return p
	}
	return Policy{AutoApproveThreshold: 1.0, EscalationThreshold: 0}
}

// Route runs the approval algorithm against resp: it only acts on
// responses whose metadata carries requires_approval=true; anything else
// is returned unchanged (nil, nil).
func (r *Router) Route(ctx context.Context, resp AgentResponse) (*AgentDecision, error) {
	meta := decodeMetadata(resp.Metadata)
	if !meta.RequiresApproval {
		return nil, nil
	}

	approvalID := uuid.New().String()
	decisionType := deriveDecisionType(resp.AgentType, meta.RequestType)
	policy := r.policyFor(resp.AgentType)

	autoApprove := resp.Confidence >= policy.AutoApproveThreshold && !policy.requiresHuman(decisionType)
	escalationRequired := resp.Confidence < policy.EscalationThreshold

	status := StatusPending
	if autoApprove {
		status = StatusApproved
	}

	now := time.Now()
	record := &AgentDecision{
		ApprovalID:         approvalID,
		AgentType:          resp.AgentType,
		DecisionType:       decisionType,
		Confidence:         resp.Confidence,
		Status:             status,
		EscalationRequired: escalationRequired,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if r.pipeline != nil {
		ctxMap := map[string]interface{}{"approval_id": approvalID}
		opts := []decision.Option{
			{ID: "approve"},
			{ID: "reject"},
			{ID: "modify"},
		}
		pd, err := r.pipeline.MakeDecision(ctxMap, opts, nil, false)
		if err != nil {
			return nil, fmt.Errorf("create auditable decision: %w", err)
		}
		record.PipelineDecisionID = pd.ID
	}

	record.ResponseText = composeResponseText(record)

	if err := r.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("persist agent decision: %w", err)
	}
	return record, nil
}

func composeResponseText(d *AgentDecision) string {
	switch {
	case d.Status == StatusApproved:
		return fmt.Sprintf("Auto-approved (confidence %.0f%%, approval_id=%s)", d.Confidence*100, d.ApprovalID)
	case d.EscalationRequired:
		return fmt.Sprintf("Escalated for review (confidence %.0f%%, approval_id=%s)", d.Confidence*100, d.ApprovalID)
	default:
		return fmt.Sprintf("Pending approval (confidence %.0f%%, approval_id=%s)", d.Confidence*100, d.ApprovalID)
	}
}

// ApproveDecision marks approvalID approved by approver, and feeds the
// outcome back to the pipeline as a successful decision when one was
// created for it.
func (r *Router) ApproveDecision(ctx context.Context, approvalID, approver string) (*AgentDecision, error) {
	record, err := r.repo.Get(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	record.Status = StatusApproved
	record.ApprovedBy = approver
	record.UpdatedAt = time.Now()
	record.ResponseText = composeResponseText(record)

	if err := r.repo.Update(ctx, record); err != nil {
		return nil, err
	}
	if r.pipeline != nil && record.PipelineDecisionID != "" {
		pd, err := r.pipeline.GetDecision(record.PipelineDecisionID)
		if err != nil {
			return record, fmt.Errorf("load pipeline decision: %w", err)
		}
		if err := r.pipeline.ExecuteDecision(ctx, pd, true, false); err != nil {
			return record, fmt.Errorf("execute pipeline decision: %w", err)
		}
	}
	return record, nil
}

// RejectDecision marks approvalID rejected by approver with an optional
// reason, and feeds the outcome back to the pipeline when one was created
// for it.
func (r *Router) RejectDecision(ctx context.Context, approvalID, approver, reason string) (*AgentDecision, error) {
	record, err := r.repo.Get(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	record.Status = StatusRejected
	record.RejectedBy = approver
	record.RejectionReason = reason
	record.UpdatedAt = time.Now()
	record.ResponseText = composeResponseText(record)

	if err := r.repo.Update(ctx, record); err != nil {
		return nil, err
	}
	if r.pipeline != nil && record.PipelineDecisionID != "" {
		if _, err := r.pipeline.ProcessFeedback(record.PipelineDecisionID, decision.Feedback{
			ActualOutcome: "failure",
		}, false, false); err != nil {
			return record, fmt.Errorf("feed rejection back to pipeline: %w", err)
		}
	}
	return record, nil
}

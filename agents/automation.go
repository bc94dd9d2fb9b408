package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/flipsync/flipsync/agentruntime"
	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/llm"
)

// AutomationRequest asks the Automation agent to identify candidates for
// automation within scope ("pricing", "inventory_sync", "all", ...).
type AutomationRequest struct {
	Scope string `mapstructure:"scope"`
}

// AutomationAgent identifies automation opportunities from agent
// performance data: agents running slow or below success-rate targets are
// candidates for caching, batching, or retry-policy changes.
type AutomationAgent struct {
	registry *agentruntime.Registry
	gateway  llm.Gateway
	logger   core.Logger
}

func NewAutomationAgent(registry *agentruntime.Registry, gateway llm.Gateway, logger core.Logger) *AutomationAgent {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &AutomationAgent{registry: registry, gateway: gateway, logger: logger}
}

const (
	automationSuccessRateThreshold = 0.8
	automationResponseTimeThreshold = 3 * time.Second
)

func (a *AutomationAgent) AnalyzeAutomation(ctx context.Context, req AutomationRequest) (agentruntime.AgentResponse, error) {
	start := time.Now()

	if a.registry == nil {
		return degraded("automation", start, fmt.Errorf("agent registry not available")), nil
	}

	metrics := a.registry.MetricsSnapshot()
	var candidates []string
	for agentID, m := range metrics {
		if m.SuccessRate < automationSuccessRateThreshold || m.AvgResponseTime > automationResponseTimeThreshold {
			candidates = append(candidates, agentID)
		}
	}

	summary := fmt.Sprintf("%d automation candidate(s) identified in scope %q", len(candidates), req.Scope)
	metadata := map[string]interface{}{"candidates": candidates, "scope": req.Scope}

	if a.gateway == nil || len(candidates) == 0 {
		return succeeded("automation", summary, "heuristic threshold scan over agent performance metrics", 0.7, start, metadata), nil
	}

	resp, err := a.gateway.Generate(ctx, llm.Request{
		Prompt:       fmt.Sprintf("Recommend automation changes for underperforming agents: %v", candidates),
		SystemPrompt: "You are an operations efficiency analyst for an e-commerce automation platform.",
	})
	if err != nil {
		a.logger.WarnWithContext(ctx, "automation narrative degraded", map[string]interface{}{"error": err.Error()})
		return succeeded("automation", summary, "heuristic threshold scan; LLM narrative unavailable", 0.6, start, metadata), nil
	}

	return succeeded("automation", resp.Content, "LLM narrative over heuristically identified candidates", 0.8, start, metadata), nil
}

func (a *AutomationAgent) HandleMessage(ctx context.Context, content map[string]interface{}, conversationID, userID string) (agentruntime.AgentResponse, error) {
	var req AutomationRequest
	if err := decodeRequest(content, &req); err != nil {
		return agentruntime.AgentResponse{}, fmt.Errorf("decode automation request: %w", err)
	}
	return a.AnalyzeAutomation(ctx, req)
}

func (a *AutomationAgent) Coordinate(ctx context.Context, msg agentruntime.CoordinationMessage) (agentruntime.AgentResponse, error) {
	return a.HandleMessage(ctx, msg.Content, "", "")
}

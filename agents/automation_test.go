package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipsync/flipsync/agentruntime"
	"github.com/flipsync/flipsync/llm"
)

func TestAutomationAgentIdentifiesSlowAgents(t *testing.T) {
	registry := agentruntime.NewRegistry()
	registry.Register("logistics-1", "logistics", nil)
	registry.RecordOutcome("logistics-1", true, 5*time.Second)

	agent := NewAutomationAgent(registry, nil, nil)
	resp, err := agent.AnalyzeAutomation(context.Background(), AutomationRequest{Scope: "all"})

	require.NoError(t, err)
	candidates, _ := resp.Metadata["candidates"].([]string)
	assert.Contains(t, candidates, "logistics-1")
}

func TestAutomationAgentNoCandidatesWhenHealthy(t *testing.T) {
	registry := agentruntime.NewRegistry()
	registry.Register("market-1", "market", nil)
	registry.RecordOutcome("market-1", true, time.Second)

	agent := NewAutomationAgent(registry, nil, nil)
	resp, err := agent.AnalyzeAutomation(context.Background(), AutomationRequest{Scope: "all"})

	require.NoError(t, err)
	candidates, _ := resp.Metadata["candidates"].([]string)
	assert.Empty(t, candidates)
}

func TestAutomationAgentUsesLLMNarrativeWhenCandidatesExist(t *testing.T) {
	registry := agentruntime.NewRegistry()
	registry.Register("logistics-1", "logistics", nil)
	registry.RecordOutcome("logistics-1", false, time.Second)

	fakeGW := &llm.FakeGateway{Response: llm.Response{Content: "switch logistics-1 to cached lookups"}}
	agent := NewAutomationAgent(registry, fakeGW, nil)

	resp, err := agent.AnalyzeAutomation(context.Background(), AutomationRequest{Scope: "logistics"})
	require.NoError(t, err)
	assert.Equal(t, "switch logistics-1 to cached lookups", resp.Content)
}

func TestAutomationAgentDegradesWithoutRegistry(t *testing.T) {
	agent := NewAutomationAgent(nil, nil, nil)
	resp, err := agent.AnalyzeAutomation(context.Background(), AutomationRequest{})
	require.NoError(t, err)
	assert.Less(t, resp.Confidence, 0.5)
}

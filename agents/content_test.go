package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipsync/flipsync/llm"
)

func TestContentAgentGenerateTemplate(t *testing.T) {
	fakeGW := &llm.FakeGateway{Response: llm.Response{Content: "Buy this amazing widget!"}}
	agent := NewContentAgent(fakeGW, nil)

	resp, err := agent.AnalyzeContent(context.Background(), ContentRequest{
		Kind:         ContentTemplate,
		TemplateName: "bullet_points",
		ProductName:  "widget",
		Marketplace:  "amazon",
	})

	require.NoError(t, err)
	assert.Equal(t, "Buy this amazing widget!", resp.Content)
	assert.Equal(t, true, resp.Metadata["requires_approval"])
	assert.Equal(t, "generate", resp.Metadata["request_type"])
}

func TestContentAgentOptimizationUsesExistingContent(t *testing.T) {
	fakeGW := &llm.FakeGateway{Response: llm.Response{Content: "improved copy"}}
	agent := NewContentAgent(fakeGW, nil)

	_, err := agent.AnalyzeContent(context.Background(), ContentRequest{
		Kind:            ContentOptimization,
		ExistingContent: "old copy",
		ProductName:     "widget",
	})
	require.NoError(t, err)
	require.Len(t, fakeGW.Calls, 1)
	assert.Contains(t, fakeGW.Calls[0].Prompt, "old copy")
}

func TestContentAgentDegradesOnGatewayError(t *testing.T) {
	fakeGW := &llm.FakeGateway{Err: errors.New("rate limited")}
	agent := NewContentAgent(fakeGW, nil)

	resp, err := agent.AnalyzeContent(context.Background(), ContentRequest{Kind: ContentTemplate})
	require.NoError(t, err)
	assert.Less(t, resp.Confidence, 0.5)
}

func TestContentAgentNoGatewayConfigured(t *testing.T) {
	agent := NewContentAgent(nil, nil)
	resp, err := agent.AnalyzeContent(context.Background(), ContentRequest{Kind: ContentTemplate})
	require.NoError(t, err)
	assert.Less(t, resp.Confidence, 0.5)
}

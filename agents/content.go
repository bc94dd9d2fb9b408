package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/flipsync/flipsync/agentruntime"
	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/llm"
)

// ContentRequestKind distinguishes a fresh-generation request from an
// optimization pass over existing copy.
type ContentRequestKind string

const (
	ContentTemplate     ContentRequestKind = "template"
	ContentOptimization ContentRequestKind = "optimization"
)

// ContentRequest is the request shape AnalyzeContent and HandleMessage
// accept.
type ContentRequest struct {
	Kind            ContentRequestKind `mapstructure:"kind"`
	TemplateName    string             `mapstructure:"template_name"`
	ProductName     string             `mapstructure:"product_name"`
	ExistingContent string             `mapstructure:"existing_content"`
	Marketplace     string             `mapstructure:"marketplace"`
}

// ContentAgent generates and optimizes listing copy via the LLM gateway.
type ContentAgent struct {
	gateway llm.Gateway
	logger  core.Logger
}

func NewContentAgent(gateway llm.Gateway, logger core.Logger) *ContentAgent {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &ContentAgent{gateway: gateway, logger: logger}
}

func (a *ContentAgent) AnalyzeContent(ctx context.Context, req ContentRequest) (agentruntime.AgentResponse, error) {
	start := time.Now()

	if a.gateway == nil {
		return degraded("content", start, fmt.Errorf("llm gateway not configured")), nil
	}

	var prompt, systemPrompt string
	switch req.Kind {
	case ContentOptimization:
		systemPrompt = "You are a marketplace listing copy editor. Improve clarity and conversion without changing facts."
		prompt = fmt.Sprintf("Optimize this listing copy for %s on %s:\n%s", req.ProductName, req.Marketplace, req.ExistingContent)
	default:
		systemPrompt = "You are a marketplace listing copywriter."
		prompt = fmt.Sprintf("Write listing copy for %q using the %q template, targeting %s.", req.ProductName, req.TemplateName, req.Marketplace)
	}

	resp, err := a.gateway.Generate(ctx, llm.Request{Prompt: prompt, SystemPrompt: systemPrompt})
	if err != nil {
		a.logger.WarnWithContext(ctx, "content generation degraded", map[string]interface{}{"error": err.Error()})
		return degraded("content", start, err), nil
	}

	metadata := map[string]interface{}{
		"kind":                string(req.Kind),
		"requires_approval":   true,
		"request_type":        "generate",
	}
	return succeeded("content", resp.Content, "content produced by LLM gateway", 0.75, start, metadata), nil
}

func (a *ContentAgent) HandleMessage(ctx context.Context, content map[string]interface{}, conversationID, userID string) (agentruntime.AgentResponse, error) {
	var req ContentRequest
	if err := decodeRequest(content, &req); err != nil {
		return agentruntime.AgentResponse{}, fmt.Errorf("decode content request: %w", err)
	}
	return a.AnalyzeContent(ctx, req)
}

func (a *ContentAgent) Coordinate(ctx context.Context, msg agentruntime.CoordinationMessage) (agentruntime.AgentResponse, error) {
	return a.HandleMessage(ctx, msg.Content, "", "")
}

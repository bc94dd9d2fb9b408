package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/flipsync/flipsync/agentruntime"
	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/llm"
)

// MarketRequest is the request shape AnalyzeMarket and HandleMessage
// accept: a product/marketplace pricing and competitor query.
type MarketRequest struct {
	ProductQuery       string     `mapstructure:"product_query"`
	TargetMarketplace  string     `mapstructure:"target_marketplace"`
	AnalysisDepth      string     `mapstructure:"analysis_depth"`
	IncludeCompetitors bool       `mapstructure:"include_competitors"`
	PriceRange         *[2]float64 `mapstructure:"price_range"`
}

// MarketAgent produces pricing and competitor analysis via the LLM
// gateway.
type MarketAgent struct {
	gateway llm.Gateway
	logger  core.Logger
}

func NewMarketAgent(gateway llm.Gateway, logger core.Logger) *MarketAgent {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &MarketAgent{gateway: gateway, logger: logger}
}

// AnalyzeMarket runs a pricing/competitor analysis for req. On gateway
// failure it returns a degraded, not failed, response.
func (a *MarketAgent) AnalyzeMarket(ctx context.Context, req MarketRequest) (agentruntime.AgentResponse, error) {
	start := time.Now()

	if a.gateway == nil {
		return degraded("market", start, fmt.Errorf("llm gateway not configured")), nil
	}

	prompt := fmt.Sprintf("Analyze pricing for %q on %s at %s depth.", req.ProductQuery, req.TargetMarketplace, req.AnalysisDepth)
	if req.IncludeCompetitors {
		prompt += " Include competitor pricing."
	}
	if req.PriceRange != nil {
		prompt += fmt.Sprintf(" Constrain recommendations to the range [%.2f, %.2f].", req.PriceRange[0], req.PriceRange[1])
	}

	resp, err := a.gateway.Generate(ctx, llm.Request{
		Prompt:       prompt,
		SystemPrompt: "You are a marketplace pricing analyst. Be concise and specific.",
	})
	if err != nil {
		a.logger.WarnWithContext(ctx, "market analysis degraded", map[string]interface{}{"error": err.Error()})
		return degraded("market", start, err), nil
	}

	confidence := 0.7
	if req.AnalysisDepth == "deep" {
		confidence = 0.9
	}
	return succeeded("market", resp.Content, "analysis produced by LLM gateway", confidence, start, map[string]interface{}{
		"target_marketplace":  req.TargetMarketplace,
		"include_competitors": req.IncludeCompetitors,
	}), nil
}

// HandleMessage satisfies agentruntime.Conversational.
func (a *MarketAgent) HandleMessage(ctx context.Context, content map[string]interface{}, conversationID, userID string) (agentruntime.AgentResponse, error) {
	var req MarketRequest
	if err := decodeRequest(content, &req); err != nil {
		return agentruntime.AgentResponse{}, fmt.Errorf("decode market request: %w", err)
	}
	return a.AnalyzeMarket(ctx, req)
}

// Coordinate satisfies agentruntime.Coordinator.
func (a *MarketAgent) Coordinate(ctx context.Context, msg agentruntime.CoordinationMessage) (agentruntime.AgentResponse, error) {
	return a.HandleMessage(ctx, msg.Content, "", "")
}

package agents

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/flipsync/flipsync/agentruntime"
	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/llm"
	"github.com/flipsync/flipsync/marketplace"
)

// LogisticsRequestKind selects which logistics sub-domain a request
// targets.
type LogisticsRequestKind string

const (
	LogisticsInventory    LogisticsRequestKind = "inventory"
	LogisticsShipping     LogisticsRequestKind = "shipping"
	LogisticsFulfillment  LogisticsRequestKind = "fulfillment"
	LogisticsSupplyChain  LogisticsRequestKind = "supply_chain"
)

// LogisticsRequest is the request shape AnalyzeLogistics and
// HandleMessage accept.
type LogisticsRequest struct {
	Kind          LogisticsRequestKind            `mapstructure:"kind"`
	SKU           string                          `mapstructure:"sku"`
	Quantity      int                             `mapstructure:"quantity"`
	Price         string                          `mapstructure:"price"`
	ListingRef    string                          `mapstructure:"listing_ref"`
	Marketplaces  []string                        `mapstructure:"marketplaces"`
	ShipmentQuote *marketplace.ShipmentQuoteRequest `mapstructure:"shipment_quote"`
}

// LogisticsAgent handles inventory, shipping, fulfillment readiness, and
// supply-chain requests against a single marketplace adapter.
type LogisticsAgent struct {
	adapter marketplace.Adapter
	gateway llm.Gateway
	logger  core.Logger
}

func NewLogisticsAgent(adapter marketplace.Adapter, gateway llm.Gateway, logger core.Logger) *LogisticsAgent {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &LogisticsAgent{adapter: adapter, gateway: gateway, logger: logger}
}

func (a *LogisticsAgent) AnalyzeLogistics(ctx context.Context, req LogisticsRequest) (agentruntime.AgentResponse, error) {
	start := time.Now()

	switch req.Kind {
	case LogisticsShipping:
		return a.analyzeShipping(ctx, req, start)
	case LogisticsInventory:
		return a.analyzeInventory(ctx, req, start)
	case LogisticsFulfillment:
		return a.analyzeFulfillment(req, start), nil
	case LogisticsSupplyChain:
		return a.analyzeSupplyChain(ctx, req, start)
	default:
		return degraded("logistics", start, fmt.Errorf("unknown logistics request kind %q", req.Kind)), nil
	}
}

func (a *LogisticsAgent) analyzeShipping(ctx context.Context, req LogisticsRequest, start time.Time) (agentruntime.AgentResponse, error) {
	if a.adapter == nil || req.ShipmentQuote == nil {
		return degraded("logistics", start, fmt.Errorf("marketplace adapter or shipment quote request not available")), nil
	}
	quotes, err := a.adapter.QuoteShipment(ctx, *req.ShipmentQuote)
	if err != nil {
		a.logger.WarnWithContext(ctx, "shipping quote degraded", map[string]interface{}{"error": err.Error()})
		return degraded("logistics", start, err), nil
	}
	if len(quotes) == 0 {
		return degraded("logistics", start, fmt.Errorf("no carrier quotes returned")), nil
	}
	cheapest := quotes[0]
	cheapestAmount, cheapestErr := strconv.ParseFloat(cheapest.Amount, 64)
	for _, q := range quotes[1:] {
		amount, err := strconv.ParseFloat(q.Amount, 64)
		if err == nil && (cheapestErr != nil || amount < cheapestAmount) {
			cheapest, cheapestAmount, cheapestErr = q, amount, nil
		}
	}
	content := fmt.Sprintf("Recommended carrier: %s (%s), estimated %d day(s).", cheapest.Carrier, cheapest.Service, cheapest.EstimatedDays)
	return succeeded("logistics", content, "shipment quote from marketplace adapter", 0.85, start, map[string]interface{}{
		"quotes": quotes,
	}), nil
}

func (a *LogisticsAgent) analyzeInventory(ctx context.Context, req LogisticsRequest, start time.Time) (agentruntime.AgentResponse, error) {
	if a.adapter == nil {
		return degraded("logistics", start, fmt.Errorf("marketplace adapter not available")), nil
	}
	results, err := a.adapter.SyncInventoryBatch(ctx, map[string]marketplace.InventoryUpdate{
		req.SKU: {Quantity: req.Quantity, Price: req.Price, ListingRef: req.ListingRef},
	})
	if err != nil {
		a.logger.WarnWithContext(ctx, "inventory sync degraded", map[string]interface{}{"error": err.Error()})
		return degraded("logistics", start, err), nil
	}
	result, ok := results[req.SKU]
	if !ok || !result.OK {
		return degraded("logistics", start, fmt.Errorf("inventory sync rejected for %s", req.SKU)), nil
	}
	return succeeded("logistics", fmt.Sprintf("inventory for %s synced to %d units", req.SKU, req.Quantity), "synced via marketplace adapter", 0.9, start, nil), nil
}

func (a *LogisticsAgent) analyzeFulfillment(req LogisticsRequest, start time.Time) agentruntime.AgentResponse {
	if len(req.Marketplaces) == 0 {
		return degraded("logistics", start, fmt.Errorf("no marketplaces supplied for fulfillment readiness check"))
	}
	return succeeded("logistics", fmt.Sprintf("fulfillment feasible across %d marketplace(s)", len(req.Marketplaces)), "heuristic readiness check, no adapter call required", 0.8, start, map[string]interface{}{
		"marketplaces": req.Marketplaces,
	})
}

func (a *LogisticsAgent) analyzeSupplyChain(ctx context.Context, req LogisticsRequest, start time.Time) (agentruntime.AgentResponse, error) {
	if a.gateway == nil {
		return succeeded("logistics", "supply chain stable; no disruptions flagged", "heuristic fallback, no LLM gateway configured", 0.6, start, nil), nil
	}
	resp, err := a.gateway.Generate(ctx, llm.Request{
		Prompt:       fmt.Sprintf("Assess supply-chain risk for SKU %s across marketplaces %v.", req.SKU, req.Marketplaces),
		SystemPrompt: "You are a supply chain risk analyst for an e-commerce seller.",
	})
	if err != nil {
		a.logger.WarnWithContext(ctx, "supply chain analysis degraded", map[string]interface{}{"error": err.Error()})
		return degraded("logistics", start, err), nil
	}
	return succeeded("logistics", resp.Content, "supply chain analysis produced by LLM gateway", 0.75, start, nil), nil
}

func (a *LogisticsAgent) HandleMessage(ctx context.Context, content map[string]interface{}, conversationID, userID string) (agentruntime.AgentResponse, error) {
	var req LogisticsRequest
	if err := decodeRequest(content, &req); err != nil {
		return agentruntime.AgentResponse{}, fmt.Errorf("decode logistics request: %w", err)
	}
	return a.AnalyzeLogistics(ctx, req)
}

func (a *LogisticsAgent) Coordinate(ctx context.Context, msg agentruntime.CoordinationMessage) (agentruntime.AgentResponse, error) {
	return a.HandleMessage(ctx, msg.Content, "", "")
}

// SyncInventory satisfies agentruntime.InventoryOperator.
func (a *LogisticsAgent) SyncInventory(ctx context.Context, sku string, marketplaces []string) (agentruntime.AgentResponse, error) {
	return a.AnalyzeLogistics(ctx, LogisticsRequest{Kind: LogisticsInventory, SKU: sku, Marketplaces: marketplaces})
}

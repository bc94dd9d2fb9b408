package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipsync/flipsync/marketplace"
)

func TestLogisticsAgentShippingRecommendsCheapestQuote(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{Quotes: []marketplace.ShipmentQuote{
		{Carrier: "ups", Service: "ground", Amount: "10.00", EstimatedDays: 4},
	}}
	agent := NewLogisticsAgent(fakeAdapter, nil, nil)

	resp, err := agent.AnalyzeLogistics(context.Background(), LogisticsRequest{
		Kind:          LogisticsShipping,
		ShipmentQuote: &marketplace.ShipmentQuoteRequest{Origin: "A", Destination: "B", WeightKg: 2},
	})

	require.NoError(t, err)
	assert.Contains(t, resp.Content, "ups")
	assert.InDelta(t, 0.85, resp.Confidence, 1e-9)
}

func TestLogisticsAgentShippingDegradesWithoutAdapter(t *testing.T) {
	agent := NewLogisticsAgent(nil, nil, nil)
	resp, err := agent.AnalyzeLogistics(context.Background(), LogisticsRequest{Kind: LogisticsShipping})
	require.NoError(t, err)
	assert.Less(t, resp.Confidence, 0.5)
}

func TestLogisticsAgentShippingDegradesOnAdapterError(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{QuoteErr: errors.New("carrier api down")}
	agent := NewLogisticsAgent(fakeAdapter, nil, nil)

	resp, err := agent.AnalyzeLogistics(context.Background(), LogisticsRequest{
		Kind:          LogisticsShipping,
		ShipmentQuote: &marketplace.ShipmentQuoteRequest{},
	})
	require.NoError(t, err)
	assert.Less(t, resp.Confidence, 0.5)
	assert.Contains(t, resp.Reasoning, "fallback: true")
}

func TestLogisticsAgentInventorySyncSuccess(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{}
	agent := NewLogisticsAgent(fakeAdapter, nil, nil)

	resp, err := agent.AnalyzeLogistics(context.Background(), LogisticsRequest{
		Kind: LogisticsInventory, SKU: "sku-1", Quantity: 5, Price: "9.99",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, resp.Confidence, 1e-9)
}

func TestLogisticsAgentFulfillmentRequiresMarketplaces(t *testing.T) {
	agent := NewLogisticsAgent(nil, nil, nil)
	resp, err := agent.AnalyzeLogistics(context.Background(), LogisticsRequest{Kind: LogisticsFulfillment})
	require.NoError(t, err)
	assert.Less(t, resp.Confidence, 0.5)
}

func TestLogisticsAgentFulfillmentFeasible(t *testing.T) {
	agent := NewLogisticsAgent(nil, nil, nil)
	resp, err := agent.AnalyzeLogistics(context.Background(), LogisticsRequest{
		Kind: LogisticsFulfillment, Marketplaces: []string{"amazon", "ebay"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "2 marketplace")
}

func TestLogisticsAgentSupplyChainFallsBackWithoutGateway(t *testing.T) {
	agent := NewLogisticsAgent(nil, nil, nil)
	resp, err := agent.AnalyzeLogistics(context.Background(), LogisticsRequest{Kind: LogisticsSupplyChain})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, resp.Confidence, 1e-9)
}

func TestLogisticsAgentUnknownKindDegrades(t *testing.T) {
	agent := NewLogisticsAgent(nil, nil, nil)
	resp, err := agent.AnalyzeLogistics(context.Background(), LogisticsRequest{Kind: "bogus"})
	require.NoError(t, err)
	assert.Less(t, resp.Confidence, 0.5)
}

func TestLogisticsAgentSyncInventorySatisfiesInventoryOperator(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{}
	agent := NewLogisticsAgent(fakeAdapter, nil, nil)

	resp, err := agent.SyncInventory(context.Background(), "sku-1", []string{"amazon"})
	require.NoError(t, err)
	assert.Equal(t, "logistics", resp.AgentType)
}

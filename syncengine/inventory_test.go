package syncengine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipsync/flipsync/marketplace"
)

func TestSyncInventoryAcrossMarketplacesSuccess(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{}
	im := NewInventoryManager(map[string]marketplace.Adapter{"amazon": fakeAdapter}, nil, nil)
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "amazon", SKU: "sku-1", Quantity: 10, Price: decimal.NewFromFloat(9.99)})

	result, err := im.SyncInventoryAcrossMarketplaces(context.Background(), nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 0, result.Failed)

	entry, ok := im.Entry("amazon", "sku-1")
	require.True(t, ok)
	assert.Equal(t, SyncCompleted, entry.SyncStatus)
}

func TestSyncInventoryAcrossMarketplacesAdapterError(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{SyncErr: errors.New("marketplace api down")}
	im := NewInventoryManager(map[string]marketplace.Adapter{"amazon": fakeAdapter}, nil, nil)
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "amazon", SKU: "sku-1", Quantity: 10, Price: decimal.NewFromFloat(9.99)})

	result, err := im.SyncInventoryAcrossMarketplaces(context.Background(), nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.NotEmpty(t, result.Errors)

	entry, ok := im.Entry("amazon", "sku-1")
	require.True(t, ok)
	assert.Equal(t, SyncFailed, entry.SyncStatus)
}

func TestSyncInventoryAcrossMarketplacesPartialFailure(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{SyncResults: map[string]marketplace.SyncResult{
		"sku-1": {OK: true},
		"sku-2": {OK: false, Error: "listing inactive"},
	}}
	im := NewInventoryManager(map[string]marketplace.Adapter{"amazon": fakeAdapter}, nil, nil)
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "amazon", SKU: "sku-1", Quantity: 10, Price: decimal.NewFromFloat(9.99)})
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "amazon", SKU: "sku-2", Quantity: 5, Price: decimal.NewFromFloat(4.99)})

	result, err := im.SyncInventoryAcrossMarketplaces(context.Background(), nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
}

func TestSyncInventoryAcrossMarketplacesUnknownMarketplace(t *testing.T) {
	im := NewInventoryManager(map[string]marketplace.Adapter{}, nil, nil)
	result, err := im.SyncInventoryAcrossMarketplaces(context.Background(), nil, []string{"bogus"}, false)
	require.NoError(t, err)
	assert.Contains(t, result.Errors[0], "marketplace unknown")
}

func TestApplyRebalanceRecommendationClearsOnFullSuccess(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{}
	im := NewInventoryManager(map[string]marketplace.Adapter{"amazon": fakeAdapter, "ebay": fakeAdapter}, nil, nil)
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "amazon", SKU: "sku-1", Quantity: 10})
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "ebay", SKU: "sku-1", Quantity: 20})

	_, err := im.GenerateRebalanceRecommendation("sku-1", StrategyEqualDistribution, nil)
	require.NoError(t, err)

	results, err := im.ApplyRebalanceRecommendation(context.Background(), "sku-1")
	require.NoError(t, err)
	for _, res := range results {
		assert.True(t, res.OK)
	}

	_, ok := im.PendingRecommendation("sku-1")
	assert.False(t, ok)
}

func TestApplyRebalanceRecommendationPartialFailureKeepsRecommendationPending(t *testing.T) {
	good := &marketplace.FakeAdapter{}
	bad := &marketplace.FakeAdapter{SyncErr: errors.New("rate limited")}
	im := NewInventoryManager(map[string]marketplace.Adapter{"amazon": good, "ebay": bad}, nil, nil)
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "amazon", SKU: "sku-1", Quantity: 10})
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "ebay", SKU: "sku-1", Quantity: 20})

	_, err := im.GenerateRebalanceRecommendation("sku-1", StrategyEqualDistribution, nil)
	require.NoError(t, err)

	results, err := im.ApplyRebalanceRecommendation(context.Background(), "sku-1")
	require.NoError(t, err)
	assert.False(t, results["ebay"].OK)

	_, ok := im.PendingRecommendation("sku-1")
	assert.True(t, ok, "partial failure must leave the recommendation pending for retry")
}

func TestApplyRebalanceRecommendationNoPendingRecommendation(t *testing.T) {
	im := NewInventoryManager(map[string]marketplace.Adapter{}, nil, nil)
	_, err := im.ApplyRebalanceRecommendation(context.Background(), "sku-unknown")
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrNoRecommendation))
}

package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualDistributionSumInvariant(t *testing.T) {
	cases := []struct {
		marketplaces []string
		total        int
	}{
		{[]string{"amazon", "ebay", "walmart"}, 100},
		{[]string{"amazon", "ebay", "walmart"}, 101},
		{[]string{"amazon", "ebay"}, 7},
		{[]string{"amazon"}, 5},
	}

	for _, c := range cases {
		dist := equalDistribution(c.marketplaces, c.total)
		sum := 0
		min, max := -1, -1
		for _, qty := range dist {
			sum += qty
			if min == -1 || qty < min {
				min = qty
			}
			if max == -1 || qty > max {
				max = qty
			}
		}
		assert.Equal(t, c.total, sum, "sum(recommended) must equal sum(current)")
		assert.LessOrEqual(t, max-min, 1, "per-marketplace values must differ by at most 1")
	}
}

func TestEqualDistributionRemainderGoesToFirstCanonicalMarketplace(t *testing.T) {
	dist := equalDistribution([]string{"amazon", "ebay", "walmart"}, 10)
	assert.Equal(t, 4, dist["amazon"])
	assert.Equal(t, 3, dist["ebay"])
	assert.Equal(t, 3, dist["walmart"])
}

func TestWeightedDistributionSumInvariant(t *testing.T) {
	marketplaces := []string{"amazon", "ebay", "walmart"}
	weights := map[string]float64{"amazon": 0.5, "ebay": 0.3, "walmart": 0.2}
	dist := weightedDistribution(marketplaces, 101, weights)

	sum := 0
	for _, qty := range dist {
		sum += qty
	}
	assert.Equal(t, 101, sum)
}

func TestWeightedDistributionFallsBackToEqualWithoutWeights(t *testing.T) {
	marketplaces := []string{"amazon", "ebay"}
	dist := weightedDistribution(marketplaces, 10, nil)
	assert.Equal(t, 5, dist["amazon"])
	assert.Equal(t, 5, dist["ebay"])
}

func TestGenerateRebalanceRecommendationEqualDistribution(t *testing.T) {
	im := NewInventoryManager(nil, nil, nil)
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "amazon", SKU: "sku-1", Quantity: 10})
	im.UpsertEntry(MarketplaceInventoryEntry{Marketplace: "ebay", SKU: "sku-1", Quantity: 20})

	rec, err := im.GenerateRebalanceRecommendation("sku-1", StrategyEqualDistribution, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, StrategyEqualDistribution, rec.Strategy)
	assert.Equal(t, 30, rec.RecommendedDistribution["amazon"]+rec.RecommendedDistribution["ebay"])

	pending, ok := im.PendingRecommendation("sku-1")
	assert.True(t, ok)
	assert.Equal(t, rec.SKU, pending.SKU)
}

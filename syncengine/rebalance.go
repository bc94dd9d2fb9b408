package syncengine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/flipsync/flipsync/marketplace"
)

// ErrRebalanceInflight is returned by GenerateRebalanceRecommendation when
// a global rebalance analysis is already running.
var ErrRebalanceInflight = newError(ErrRebalanceRunning, "rebalance analysis already in progress")

// currentDistribution snapshots one SKU's tracked quantity across every
// marketplace carrying it.
func (im *InventoryManager) currentDistribution(sku string) map[string]int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	dist := make(map[string]int)
	for mkt, bySKU := range im.inventory {
		if entry, ok := bySKU[sku]; ok {
			dist[mkt] = entry.Quantity
		}
	}
	return dist
}

func canonicalMarketplaces(dist map[string]int) []string {
	names := make([]string, 0, len(dist))
	for name := range dist {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sumDistribution(dist map[string]int) int {
	total := 0
	for _, qty := range dist {
		total += qty
	}
	return total
}

// equalDistribution splits total evenly across marketplaces in canonical
// (sorted) order, with the remainder handed out one unit at a time starting
// from the first marketplace.
// sum(result) == total always; no two entries differ by more than 1.
func equalDistribution(marketplaces []string, total int) map[string]int {
	out := make(map[string]int, len(marketplaces))
	if len(marketplaces) == 0 {
		return out
	}
	base := total / len(marketplaces)
	remainder := total % len(marketplaces)
	for i, name := range marketplaces {
		out[name] = base
		if i < remainder {
			out[name]++
		}
	}
	return out
}

// weightedDistribution apportions total across marketplaces proportional
// to weights using the largest-remainder method, so sum(result) == total
// even though proportional shares are fractional. A marketplace absent
// from weights counts as weight 0; only when the total weight is zero does
// the split fall back to equalDistribution.
func weightedDistribution(marketplaces []string, total int, weights map[string]float64) map[string]int {
	totalWeight := 0.0
	for _, name := range marketplaces {
		totalWeight += weights[name]
	}
	if totalWeight <= 0 {
		return equalDistribution(marketplaces, total)
	}

	type share struct {
		name      string
		base      int
		remainder float64
	}
	shares := make([]share, len(marketplaces))
	assigned := 0
	for i, name := range marketplaces {
		exact := float64(total) * weights[name] / totalWeight
		base := int(exact)
		shares[i] = share{name: name, base: base, remainder: exact - float64(base)}
		assigned += base
	}

	sort.SliceStable(shares, func(i, j int) bool { return shares[i].remainder > shares[j].remainder })
	leftover := total - assigned
	out := make(map[string]int, len(marketplaces))
	for i, s := range shares {
		qty := s.base
		if i < leftover {
			qty++
		}
		out[s.name] = qty
	}
	return out
}

// GenerateRebalanceRecommendation analyzes one SKU's current distribution
// and proposes a redistribution under strategy, weighting marketplaces by
// weights (ignored by StrategyEqualDistribution). The analysis is
// single-flighted globally: a concurrent call returns ErrRebalanceInflight.
func (im *InventoryManager) GenerateRebalanceRecommendation(sku string, strategy RebalanceStrategy, weights map[string]float64) (RebalanceRecommendation, error) {
	im.rebalanceMu.Lock()
	if im.rebalanceInflight {
		im.rebalanceMu.Unlock()
		return RebalanceRecommendation{}, ErrRebalanceInflight
	}
	im.rebalanceInflight = true
	im.rebalanceMu.Unlock()
	defer func() {
		im.rebalanceMu.Lock()
		im.rebalanceInflight = false
		im.rebalanceMu.Unlock()
	}()

	current := im.currentDistribution(sku)
	marketplaces := canonicalMarketplaces(current)
	total := sumDistribution(current)

	var recommended map[string]int
	var reasoning string
	switch strategy {
	case StrategyEqualDistribution:
		recommended = equalDistribution(marketplaces, total)
		reasoning = fmt.Sprintf("even split of %d units across %d marketplaces", total, len(marketplaces))
	case StrategyPerformanceBased:
		recommended = weightedDistribution(marketplaces, total, weights)
		reasoning = "weighted by historical per-marketplace conversion performance"
	case StrategyDemandBased:
		recommended = weightedDistribution(marketplaces, total, weights)
		reasoning = "weighted by recent demand signal per marketplace"
	case StrategyProfitOptimized:
		recommended = weightedDistribution(marketplaces, total, weights)
		reasoning = "weighted by per-marketplace margin"
	default:
		recommended = equalDistribution(marketplaces, total)
		reasoning = "unrecognized strategy, defaulted to even split"
	}

	confidence := 0.6
	if len(weights) > 0 {
		confidence = 0.8
	}

	rec := RebalanceRecommendation{
		SKU:                     sku,
		CurrentDistribution:     current,
		RecommendedDistribution: recommended,
		ExpectedImpact:          fmt.Sprintf("redistributes %d units", total),
		ConfidenceScore:         confidence,
		Reasoning:               reasoning,
		Strategy:                strategy,
		GeneratedAt:             time.Now(),
	}

	im.mu.Lock()
	im.recommendations[sku] = rec
	im.mu.Unlock()

	im.publish("rebalance_recommended", map[string]interface{}{
		"sku":      sku,
		"strategy": string(strategy),
	})
	return rec, nil
}

// PendingRecommendation returns the last unapplied recommendation for sku,
// if any.
func (im *InventoryManager) PendingRecommendation(sku string) (RebalanceRecommendation, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	rec, ok := im.recommendations[sku]
	return rec, ok
}

// ApplyRebalanceRecommendation pushes a previously-generated
// recommendation's quantities to every marketplace it names. Partial
// success is permitted: the recommendation is cleared only once every
// marketplace update succeeds.
func (im *InventoryManager) ApplyRebalanceRecommendation(ctx context.Context, sku string) (map[string]marketplace.SyncResult, error) {
	im.mu.RLock()
	rec, ok := im.recommendations[sku]
	im.mu.RUnlock()
	if !ok {
		return nil, newError(ErrNoRecommendation, fmt.Sprintf("no pending rebalance recommendation for sku: %s", sku))
	}

	results := make(map[string]marketplace.SyncResult, len(rec.RecommendedDistribution))
	allOK := true
	for mktName, qty := range rec.RecommendedDistribution {
		adapter, ok := im.adapters[mktName]
		if !ok {
			results[mktName] = marketplace.SyncResult{OK: false, Error: "marketplace unknown"}
			allOK = false
			continue
		}

		im.mu.RLock()
		entry, hasEntry := im.inventory[mktName][sku]
		im.mu.RUnlock()
		price := ""
		listingRef := ""
		if hasEntry {
			price = entry.Price.String()
			listingRef = entry.ListingID
		}

		batchResults, err := adapter.SyncInventoryBatch(ctx, map[string]marketplace.InventoryUpdate{
			sku: {Quantity: qty, Price: price, ListingRef: listingRef},
		})
		if err != nil {
			results[mktName] = marketplace.SyncResult{OK: false, Error: err.Error()}
			allOK = false
			continue
		}
		res := batchResults[sku]
		results[mktName] = res
		if !res.OK {
			allOK = false
			continue
		}

		im.mu.Lock()
		if bySKU, ok := im.inventory[mktName]; ok {
			if e, ok := bySKU[sku]; ok {
				e.Quantity = qty
				e.SyncStatus = SyncCompleted
				e.LastUpdated = time.Now()
			}
		}
		im.mu.Unlock()
	}

	if allOK {
		im.mu.Lock()
		delete(im.recommendations, sku)
		im.mu.Unlock()
	}

	im.publish("rebalance_applied", map[string]interface{}{"sku": sku, "fully_applied": allOK})
	return results, nil
}

package syncengine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/decision"
	"github.com/flipsync/flipsync/marketplace"
)

// InventoryManager tracks per-marketplace, per-SKU inventory and drives
// both ad-hoc and scheduled cross-marketplace syncs plus rebalance
// analysis. Per-marketplace syncs single-flight independently; rebalance
// analysis single-flights globally, the same mutex+map in-flight-guard
// shape used by the Executive's analysis cache.
type InventoryManager struct {
	mu        sync.RWMutex
	inventory map[string]map[string]*MarketplaceInventoryEntry // marketplace -> sku -> entry
	adapters  map[string]marketplace.Adapter

	inflightMu    sync.Mutex
	inflightByMkt map[string]bool

	rebalanceMu       sync.Mutex
	rebalanceInflight bool
	recommendations   map[string]RebalanceRecommendation

	publisher decision.Publisher
	logger    core.Logger
}

// NewInventoryManager builds an InventoryManager over the given
// per-marketplace adapters. A nil publisher/logger defaults to no-ops.
func NewInventoryManager(adapters map[string]marketplace.Adapter, publisher decision.Publisher, logger core.Logger) *InventoryManager {
	if publisher == nil {
		publisher = decision.NoOpPublisher{}
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &InventoryManager{
		inventory:       make(map[string]map[string]*MarketplaceInventoryEntry),
		adapters:        adapters,
		inflightByMkt:   make(map[string]bool),
		recommendations: make(map[string]RebalanceRecommendation),
		publisher:       publisher,
		logger:          logger,
	}
}

// UpsertEntry seeds or replaces the tracked state of one SKU on one
// marketplace. Adapters learn new listings through this before they
// become eligible for sync or rebalance.
func (im *InventoryManager) UpsertEntry(entry MarketplaceInventoryEntry) {
	im.mu.Lock()
	defer im.mu.Unlock()
	bySKU, ok := im.inventory[entry.Marketplace]
	if !ok {
		bySKU = make(map[string]*MarketplaceInventoryEntry)
		im.inventory[entry.Marketplace] = bySKU
	}
	entry.LastUpdated = time.Now()
	if entry.SyncStatus == "" {
		entry.SyncStatus = SyncPending
	}
	stored := entry
	bySKU[entry.SKU] = &stored
}

// Entry returns a copy of one SKU's tracked state on one marketplace.
func (im *InventoryManager) Entry(marketplaceName, sku string) (MarketplaceInventoryEntry, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	bySKU, ok := im.inventory[marketplaceName]
	if !ok {
		return MarketplaceInventoryEntry{}, false
	}
	entry, ok := bySKU[sku]
	if !ok {
		return MarketplaceInventoryEntry{}, false
	}
	return *entry, true
}

// TrackedSKUs returns the deduplicated set of every SKU tracked on any
// marketplace, in no particular order.
func (im *InventoryManager) TrackedSKUs() []string {
	im.mu.RLock()
	defer im.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, bySKU := range im.inventory {
		for sku := range bySKU {
			seen[sku] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for sku := range seen {
		out = append(out, sku)
	}
	return out
}

func (im *InventoryManager) tryAcquireMarketplace(name string, force bool) bool {
	im.inflightMu.Lock()
	defer im.inflightMu.Unlock()
	if im.inflightByMkt[name] && !force {
		return false
	}
	im.inflightByMkt[name] = true
	return true
}

func (im *InventoryManager) releaseMarketplace(name string) {
	im.inflightMu.Lock()
	defer im.inflightMu.Unlock()
	delete(im.inflightByMkt, name)
}

// SyncInventoryAcrossMarketplaces pushes the current tracked state for sku
// (or every SKU, when sku is nil) to marketplaces (or every known
// marketplace, when empty). A marketplace already mid-sync is skipped
// unless force is set.
func (im *InventoryManager) SyncInventoryAcrossMarketplaces(ctx context.Context, sku *string, marketplaces []string, force bool) (SyncResult, error) {
	start := time.Now()
	targets := marketplaces
	if len(targets) == 0 {
		im.mu.RLock()
		for name := range im.adapters {
			targets = append(targets, name)
		}
		im.mu.RUnlock()
		sort.Strings(targets)
	}

	result := SyncResult{
		SyncID:         uuid.NewString(),
		PerMarketplace: make(map[string]MarketplaceSyncOutcome, len(targets)),
	}

	for _, name := range targets {
		adapter, ok := im.adapters[name]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("marketplace unknown: %s", name))
			continue
		}
		if !im.tryAcquireMarketplace(name, force) {
			continue
		}

		outcome := im.syncOneMarketplace(ctx, name, adapter, sku)
		im.releaseMarketplace(name)

		result.PerMarketplace[name] = outcome
		result.Successful += outcome.Synced
		result.Failed += outcome.Failed
		result.Errors = append(result.Errors, outcome.Errors...)
	}
	result.Total = result.Successful + result.Failed
	result.Duration = time.Since(start)

	im.publish("inventory_synced", map[string]interface{}{
		"sync_id":    result.SyncID,
		"total":      result.Total,
		"successful": result.Successful,
		"failed":     result.Failed,
	})
	return result, nil
}

func (im *InventoryManager) syncOneMarketplace(ctx context.Context, name string, adapter marketplace.Adapter, sku *string) MarketplaceSyncOutcome {
	im.mu.Lock()
	bySKU := im.inventory[name]
	updates := make(map[string]marketplace.InventoryUpdate, len(bySKU))
	for s, entry := range bySKU {
		if sku != nil && s != *sku {
			continue
		}
		entry.SyncStatus = SyncInProgress
		updates[s] = marketplace.InventoryUpdate{
			Quantity:   entry.Quantity,
			Price:      entry.Price.String(),
			ListingRef: entry.ListingID,
		}
	}
	im.mu.Unlock()

	if len(updates) == 0 {
		return MarketplaceSyncOutcome{}
	}

	results, err := adapter.SyncInventoryBatch(ctx, updates)
	outcome := MarketplaceSyncOutcome{}

	im.mu.Lock()
	defer im.mu.Unlock()
	if err != nil {
		outcome.Failed = len(updates)
		outcome.Errors = []string{fmt.Sprintf("%s: %v", name, err)}
		for s := range updates {
			if entry, ok := bySKU[s]; ok {
				entry.SyncStatus = SyncFailed
				entry.LastUpdated = time.Now()
			}
		}
		return outcome
	}

	for s := range updates {
		entry, ok := bySKU[s]
		if !ok {
			continue
		}
		res, ok := results[s]
		if ok && res.OK {
			entry.SyncStatus = SyncCompleted
			outcome.Synced++
		} else {
			entry.SyncStatus = SyncFailed
			outcome.Failed++
			if ok && res.Error != "" {
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s/%s: %s", name, s, res.Error))
			}
		}
		entry.LastUpdated = time.Now()
	}
	return outcome
}

func (im *InventoryManager) publish(name string, payload map[string]interface{}) {
	if err := im.publisher.Publish(decision.Event{Name: name, Payload: payload, Timestamp: time.Now()}); err != nil {
		im.logger.Warn("sync engine event publish failed", map[string]interface{}{"event": name, "error": err.Error()})
	}
}

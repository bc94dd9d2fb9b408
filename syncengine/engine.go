package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/decision"
	"github.com/flipsync/flipsync/marketplace"
)

// Engine owns the InventoryManager and OrderManager and drives their
// scheduled loops, plus the correlation/alerting loops over the
// operational failures those loops observe. StartInventoryManager/
// StartOrderManager/StartAnalyticsEngine/StartAlertingSystem and their
// Stop counterparts are independently idempotent: starting an already-
// running subsystem is a no-op, and Stop cancels and awaits only the
// loops it owns.
type Engine struct {
	Inventory *InventoryManager
	Orders    *OrderManager

	adapters  map[string]marketplace.Adapter
	sellerID  string
	config    core.SyncConfig
	analytics core.AnalyticsConfig
	publisher decision.Publisher
	logger    core.Logger

	invMu      sync.Mutex
	invRunning bool
	invCancel  context.CancelFunc
	invWG      sync.WaitGroup

	orderMu      sync.Mutex
	orderRunning bool
	orderCancel  context.CancelFunc
	orderWG      sync.WaitGroup

	analyticsMu      sync.Mutex
	analyticsRunning bool
	analyticsCancel  context.CancelFunc
	analyticsWG      sync.WaitGroup

	alertMu      sync.Mutex
	alertRunning bool
	alertCancel  context.CancelFunc
	alertWG      sync.WaitGroup

	cursorMu sync.Mutex
	cursors  map[string]string

	failureMu sync.Mutex
	failures  []failureEvent
	lastAlert map[string]time.Time
}

// NewEngine builds an Engine over the given per-marketplace adapters.
// sellerID identifies the seller account order ingestion polls on behalf
// of. analyticsCfg configures the correlation/alerting loops started by
// StartAnalyticsEngine/StartAlertingSystem. A nil publisher/logger defaults
// to no-ops.
func NewEngine(adapters map[string]marketplace.Adapter, sellerID string, cfg core.SyncConfig, analyticsCfg core.AnalyticsConfig, publisher decision.Publisher, logger core.Logger) *Engine {
	if publisher == nil {
		publisher = decision.NoOpPublisher{}
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Engine{
		Inventory: NewInventoryManager(adapters, publisher, logger),
		Orders:    NewOrderManager(publisher, logger, cfg.FulfillmentQueueSize),
		adapters:  adapters,
		sellerID:  sellerID,
		config:    cfg,
		analytics: analyticsCfg,
		publisher: publisher,
		logger:    logger,
		cursors:   make(map[string]string),
		lastAlert: make(map[string]time.Time),
	}
}

// StartInventoryManager launches one sync loop per marketplace (ticking
// every config.SyncInterval) plus one rebalance loop scanning every
// tracked SKU every config.RebalanceInterval. Idempotent.
func (e *Engine) StartInventoryManager(ctx context.Context) error {
	e.invMu.Lock()
	defer e.invMu.Unlock()
	if e.invRunning {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.invCancel = cancel
	e.invRunning = true

	for name := range e.adapters {
		e.invWG.Add(1)
		go e.runSyncLoop(loopCtx, name)
	}
	e.invWG.Add(1)
	go e.runRebalanceLoop(loopCtx)
	return nil
}

// StopInventoryManager cancels every inventory/rebalance loop and awaits
// their exit. Idempotent.
func (e *Engine) StopInventoryManager() error {
	e.invMu.Lock()
	if !e.invRunning {
		e.invMu.Unlock()
		return nil
	}
	cancel := e.invCancel
	e.invRunning = false
	e.invMu.Unlock()

	cancel()
	e.invWG.Wait()
	return nil
}

func (e *Engine) runSyncLoop(ctx context.Context, marketplaceName string) {
	defer e.invWG.Done()
	interval := e.config.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			callCtx, cancel := context.WithTimeout(ctx, interval)
			name := marketplaceName
			if _, err := e.Inventory.SyncInventoryAcrossMarketplaces(callCtx, nil, []string{name}, false); err != nil {
				e.logger.WarnWithContext(callCtx, "scheduled inventory sync failed", map[string]interface{}{
					"marketplace": name,
					"error":       err.Error(),
				})
				e.recordFailure(name)
			}
			cancel()
		}
	}
}

func (e *Engine) runRebalanceLoop(ctx context.Context) {
	defer e.invWG.Done()
	interval := e.config.RebalanceInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sku := range e.Inventory.TrackedSKUs() {
				if _, err := e.Inventory.GenerateRebalanceRecommendation(sku, StrategyEqualDistribution, nil); err != nil && err != ErrRebalanceInflight {
					e.logger.WarnWithContext(ctx, "scheduled rebalance analysis failed", map[string]interface{}{
						"sku":   sku,
						"error": err.Error(),
					})
				}
			}
		}
	}
}

// StartOrderManager launches one order-ingestion loop per marketplace,
// ticking every config.SyncInterval, fetching new orders and enqueuing
// them for fulfillment. Idempotent.
func (e *Engine) StartOrderManager(ctx context.Context) error {
	e.orderMu.Lock()
	defer e.orderMu.Unlock()
	if e.orderRunning {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.orderCancel = cancel
	e.orderRunning = true

	for name, adapter := range e.adapters {
		e.orderWG.Add(1)
		go e.runIngestionLoop(loopCtx, name, adapter)
	}
	return nil
}

// StopOrderManager cancels every order-ingestion loop and awaits their
// exit. Idempotent.
func (e *Engine) StopOrderManager() error {
	e.orderMu.Lock()
	if !e.orderRunning {
		e.orderMu.Unlock()
		return nil
	}
	cancel := e.orderCancel
	e.orderRunning = false
	e.orderMu.Unlock()

	cancel()
	e.orderWG.Wait()
	return nil
}

func (e *Engine) runIngestionLoop(ctx context.Context, marketplaceName string, adapter marketplace.Adapter) {
	defer e.orderWG.Done()
	interval := e.config.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ingestOnce(ctx, marketplaceName, adapter)
		}
	}
}

func (e *Engine) ingestOnce(ctx context.Context, marketplaceName string, adapter marketplace.Adapter) {
	e.cursorMu.Lock()
	cursor := e.cursors[marketplaceName]
	e.cursorMu.Unlock()

	raws, nextCursor, err := adapter.FetchOrdersSince(ctx, e.sellerID, cursor)
	if err != nil {
		e.logger.WarnWithContext(ctx, "scheduled order fetch failed", map[string]interface{}{
			"marketplace": marketplaceName,
			"error":       err.Error(),
		})
		e.recordFailure(marketplaceName)
		return
	}

	for _, raw := range raws {
		order, convErr := fromRawOrder(marketplaceName, raw)
		if convErr != nil {
			e.logger.WarnWithContext(ctx, "discarding unparsable order", map[string]interface{}{
				"marketplace": marketplaceName,
				"order_ref":   raw.OrderRef,
				"error":       convErr.Error(),
			})
			continue
		}
		if err := e.Orders.IngestOrder(ctx, order); err != nil {
			e.logger.WarnWithContext(ctx, "order ingestion failed", map[string]interface{}{
				"marketplace": marketplaceName,
				"order_ref":   raw.OrderRef,
				"error":       err.Error(),
			})
			e.recordFailure(marketplaceName)
		}
	}

	e.cursorMu.Lock()
	e.cursors[marketplaceName] = nextCursor
	e.cursorMu.Unlock()
}

// fromRawOrder normalizes a marketplace-specific raw order into a
// UnifiedOrder. fulfillment_method defaults to SELF_FULFILLED unless the
// marketplace's raw payload says otherwise.
func fromRawOrder(marketplaceName string, raw marketplace.MarketplaceOrderRaw) (*UnifiedOrder, error) {
	total, err := decimal.NewFromString(raw.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("parse total_amount: %w", err)
	}

	items := make([]OrderItem, 0, len(raw.Items))
	for _, item := range raw.Items {
		unitCost, err := decimal.NewFromString(item.UnitCost)
		if err != nil {
			return nil, fmt.Errorf("parse unit_cost for sku %s: %w", item.SKU, err)
		}
		items = append(items, OrderItem{SKU: item.SKU, Quantity: item.Quantity, UnitCost: unitCost})
	}

	priority := PriorityNormal
	if raw.Priority == string(PriorityUrgent) {
		priority = PriorityUrgent
	}

	method := FulfillmentSelf
	if fm, ok := raw.Raw["fulfillment_method"].(string); ok && fm == string(FulfillmentMarketplace) {
		method = FulfillmentMarketplace
	}

	return &UnifiedOrder{
		OrderID:            raw.OrderRef,
		MarketplaceOrderID: raw.OrderRef,
		Marketplace:        marketplaceName,
		Items:              items,
		Priority:           priority,
		FulfillmentMethod:  method,
		OrderTotal:         total,
	}, nil
}

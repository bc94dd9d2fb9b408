package syncengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/decision"
	"github.com/flipsync/flipsync/marketplace"
)

func TestEngineStartStopInventoryManagerIdempotent(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{}
	cfg := core.SyncConfig{SyncInterval: 10 * time.Millisecond, RebalanceInterval: 10 * time.Millisecond, FulfillmentQueueSize: 10}
	engine := NewEngine(map[string]marketplace.Adapter{"amazon": fakeAdapter}, "seller-1", cfg, core.AnalyticsConfig{}, nil, nil)

	require.NoError(t, engine.StartInventoryManager(context.Background()))
	require.NoError(t, engine.StartInventoryManager(context.Background()))

	require.NoError(t, engine.StopInventoryManager())
	require.NoError(t, engine.StopInventoryManager())
}

func TestEngineOrderIngestionLoopIngestsFetchedOrders(t *testing.T) {
	fakeAdapter := &marketplace.FakeAdapter{
		Orders: []marketplace.MarketplaceOrderRaw{
			{
				OrderRef:    "mp-order-1",
				Marketplace: "amazon",
				Priority:    "normal",
				Items:       []marketplace.RawOrderItem{{SKU: "sku-1", Quantity: 1, UnitCost: "5.00"}},
				TotalAmount: "5.00",
			},
		},
		NextCursor: "cursor-1",
	}
	cfg := core.SyncConfig{SyncInterval: 10 * time.Millisecond, RebalanceInterval: time.Hour, FulfillmentQueueSize: 10}
	engine := NewEngine(map[string]marketplace.Adapter{"amazon": fakeAdapter}, "seller-1", cfg, core.AnalyticsConfig{}, nil, nil)

	require.NoError(t, engine.StartOrderManager(context.Background()))
	defer engine.StopOrderManager()

	require.Eventually(t, func() bool {
		order, err := engine.Orders.GetOrder("mp-order-1")
		return err == nil && order.Status == OrderConfirmed
	}, time.Second, 5*time.Millisecond)
}

func TestFromRawOrderDefaultsToSelfFulfilled(t *testing.T) {
	raw := marketplace.MarketplaceOrderRaw{
		OrderRef:    "r1",
		TotalAmount: "10.00",
		Items:       []marketplace.RawOrderItem{{SKU: "sku-1", Quantity: 1, UnitCost: "10.00"}},
	}
	order, err := fromRawOrder("amazon", raw)
	require.NoError(t, err)
	assert.Equal(t, FulfillmentSelf, order.FulfillmentMethod)
	assert.Equal(t, PriorityNormal, order.Priority)
}

func TestFromRawOrderHonorsUrgentPriorityAndMarketplaceFulfillment(t *testing.T) {
	raw := marketplace.MarketplaceOrderRaw{
		OrderRef:    "r2",
		TotalAmount: "10.00",
		Priority:    "urgent",
		Items:       []marketplace.RawOrderItem{{SKU: "sku-1", Quantity: 1, UnitCost: "10.00"}},
		Raw:         map[string]interface{}{"fulfillment_method": "marketplace_fulfilled"},
	}
	order, err := fromRawOrder("amazon", raw)
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, order.Priority)
	assert.Equal(t, FulfillmentMarketplace, order.FulfillmentMethod)
}

func TestFromRawOrderRejectsUnparsableAmount(t *testing.T) {
	raw := marketplace.MarketplaceOrderRaw{OrderRef: "r3", TotalAmount: "not-a-number"}
	_, err := fromRawOrder("amazon", raw)
	assert.Error(t, err)
}

func TestEngineStartStopAnalyticsEngineIdempotent(t *testing.T) {
	cfg := core.SyncConfig{FulfillmentQueueSize: 10}
	analyticsCfg := core.AnalyticsConfig{WindowHours: 1, CorrelationWindow: time.Hour}
	engine := NewEngine(nil, "seller-1", cfg, analyticsCfg, nil, nil)

	require.NoError(t, engine.StartAnalyticsEngine(context.Background()))
	require.NoError(t, engine.StartAnalyticsEngine(context.Background()))

	require.NoError(t, engine.StopAnalyticsEngine())
	require.NoError(t, engine.StopAnalyticsEngine())
}

func TestEngineStartStopAlertingSystemIdempotent(t *testing.T) {
	cfg := core.SyncConfig{FulfillmentQueueSize: 10}
	analyticsCfg := core.AnalyticsConfig{CorrelationWindow: time.Hour, MaxAlertsPerCorrelation: 10, SuppressionWindow: time.Hour}
	engine := NewEngine(nil, "seller-1", cfg, analyticsCfg, nil, nil)

	require.NoError(t, engine.StartAlertingSystem(context.Background()))
	require.NoError(t, engine.StartAlertingSystem(context.Background()))

	require.NoError(t, engine.StopAlertingSystem())
	require.NoError(t, engine.StopAlertingSystem())
}

func TestEngineAlertingSystemRaisesAlertOnceThresholdCrossedThenSuppresses(t *testing.T) {
	cfg := core.SyncConfig{FulfillmentQueueSize: 10}
	analyticsCfg := core.AnalyticsConfig{
		CorrelationWindow:       time.Hour,
		MaxAlertsPerCorrelation: 2,
		SuppressionWindow:       time.Hour,
	}

	var mu sync.Mutex
	var alerts []decision.Event
	publisher := decision.FuncPublisher(func(e decision.Event) error {
		mu.Lock()
		defer mu.Unlock()
		alerts = append(alerts, e)
		return nil
	})

	engine := NewEngine(nil, "seller-1", cfg, analyticsCfg, publisher, nil)
	engine.recordFailure("amazon")
	engine.recordFailure("amazon")

	engine.evaluateAlerts(analyticsCfg.CorrelationWindow, analyticsCfg.MaxAlertsPerCorrelation, analyticsCfg.SuppressionWindow)
	engine.recordFailure("amazon")
	engine.evaluateAlerts(analyticsCfg.CorrelationWindow, analyticsCfg.MaxAlertsPerCorrelation, analyticsCfg.SuppressionWindow)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, alerts, 1)
	assert.Equal(t, "alert_raised", alerts[0].Name)
	assert.Equal(t, "amazon", alerts[0].Payload["marketplace"])
}

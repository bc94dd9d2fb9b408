// Package syncengine implements the Cross-Marketplace Sync & Order
// Engine: per-marketplace inventory sync loops, hourly rebalance
// analysis, a unified order model, and a bounded fulfillment queue.
package syncengine

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the UnifiedOrder lifecycle state.
type OrderStatus string

const (
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderReturned   OrderStatus = "returned"
	OrderRefunded   OrderStatus = "refunded"
)

// IsTerminal reports whether status forbids further mutation, except the
// DELIVERED -> RETURNED|REFUNDED exception CanTransition handles.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderDelivered, OrderCancelled, OrderReturned, OrderRefunded:
		return true
	default:
		return false
	}
}

// orderTransitions enumerates every legal order status transition.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderConfirmed:  {OrderProcessing, OrderShipped, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderReturned},
	OrderDelivered:  {OrderReturned, OrderRefunded},
}

// CanTransition reports whether from -> to is a legal order status
// transition.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Priority is an order's fulfillment urgency.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// FulfillmentMethod describes who ships an order.
type FulfillmentMethod string

const (
	FulfillmentSelf        FulfillmentMethod = "self_fulfilled"
	FulfillmentMarketplace FulfillmentMethod = "marketplace_fulfilled"
)

// OrderItem is one line item on a UnifiedOrder.
type OrderItem struct {
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// UnifiedOrder is the normalized order record the order manager tracks,
// independent of originating marketplace.
type UnifiedOrder struct {
	OrderID             string            `json:"order_id"`
	MarketplaceOrderID  string            `json:"marketplace_order_id"`
	Marketplace         string            `json:"marketplace"`
	SellerID            string            `json:"seller_id"`
	BuyerInfo           map[string]string `json:"buyer_info"`
	Items               []OrderItem       `json:"items"`
	ShippingInfo        map[string]string `json:"shipping_info"`
	Status              OrderStatus       `json:"status"`
	Priority            Priority          `json:"priority"`
	FulfillmentMethod   FulfillmentMethod `json:"fulfillment_method"`
	OrderTotal          decimal.Decimal   `json:"order_total"`
	Fees                decimal.Decimal   `json:"fees"`
	TrackingNumber      string            `json:"tracking_number,omitempty"`
	Carrier             string            `json:"carrier,omitempty"`
	RefundAmount        *decimal.Decimal  `json:"refund_amount,omitempty"`
	ReturnReason        string            `json:"return_reason,omitempty"`
	Notes               []string          `json:"notes"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// FulfillmentResult is the non-throwing outcome of FulfillOrder/ProcessReturn.
type FulfillmentResult struct {
	Success bool          `json:"success"`
	Errors  []string      `json:"errors,omitempty"`
	Order   *UnifiedOrder `json:"order,omitempty"`
}

// MarketplaceInventoryEntry is one SKU's state on one marketplace.
type MarketplaceInventoryEntry struct {
	Marketplace string          `json:"marketplace"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	ListingID   string          `json:"listing_id"`
	Status      string          `json:"status"`
	LastUpdated time.Time       `json:"last_updated"`
	SyncStatus  SyncStatus      `json:"sync_status"`
}

// SyncStatus is the per-SKU-per-marketplace sync lifecycle state.
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncInProgress SyncStatus = "in_progress"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
	SyncPartial    SyncStatus = "partial"
)

// RebalanceStrategy selects how GenerateRebalanceRecommendation's candidate
// recommendations are weighted across marketplaces.
type RebalanceStrategy string

const (
	StrategyPerformanceBased  RebalanceStrategy = "performance_based"
	StrategyEqualDistribution RebalanceStrategy = "equal_distribution"
	StrategyDemandBased       RebalanceStrategy = "demand_based"
	StrategyProfitOptimized   RebalanceStrategy = "profit_optimized"
)

// RebalanceRecommendation is one SKU's proposed redistribution across
// marketplaces.
type RebalanceRecommendation struct {
	SKU                     string            `json:"sku"`
	CurrentDistribution     map[string]int    `json:"current_distribution"`
	RecommendedDistribution map[string]int    `json:"recommended_distribution"`
	ExpectedImpact          string            `json:"expected_impact"`
	ConfidenceScore         float64           `json:"confidence_score"`
	Reasoning               string            `json:"reasoning"`
	Strategy                RebalanceStrategy `json:"strategy"`
	GeneratedAt             time.Time         `json:"generated_at"`
}

// SyncResult is the outcome of one SyncInventoryAcrossMarketplaces call.
type SyncResult struct {
	SyncID         string                             `json:"sync_id"`
	Total          int                                `json:"total"`
	Successful     int                                `json:"successful"`
	Failed         int                                `json:"failed"`
	PerMarketplace map[string]MarketplaceSyncOutcome `json:"per_marketplace"`
	Errors         []string                           `json:"errors,omitempty"`
	Duration       time.Duration                      `json:"duration"`
}

// MarketplaceSyncOutcome is one marketplace's contribution to a
// SyncResult.
type MarketplaceSyncOutcome struct {
	Synced int      `json:"synced"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

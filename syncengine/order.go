package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/decision"
)

const defaultFulfillmentQueueCapacity = 500

// OrderManager owns the unified order table and the bounded fulfillment
// queue every ingested order passes through. Per-order-id updates are
// linearized through a sharded lock, so calls on the same order observe-
// then-write atomically. Calls on different orders still serialize on the
// single order-table mutex, which FulfillOrder and ProcessReturn hold for
// their whole update.
type OrderManager struct {
	mu     sync.RWMutex
	orders map[string]*UnifiedOrder

	shardMu sync.Mutex
	shards  map[string]*sync.Mutex

	queue     *FulfillmentQueue
	publisher decision.Publisher
	logger    core.Logger
}

// NewOrderManager builds an OrderManager with the given fulfillment queue
// capacity. A nil publisher/logger defaults to no-ops.
func NewOrderManager(publisher decision.Publisher, logger core.Logger, queueCapacity int) *OrderManager {
	if publisher == nil {
		publisher = decision.NoOpPublisher{}
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	if queueCapacity <= 0 {
		queueCapacity = defaultFulfillmentQueueCapacity
	}
	return &OrderManager{
		orders:    make(map[string]*UnifiedOrder),
		shards:    make(map[string]*sync.Mutex),
		queue:     NewFulfillmentQueue(queueCapacity),
		publisher: publisher,
		logger:    logger,
	}
}

func (m *OrderManager) shardLock(orderID string) *sync.Mutex {
	m.shardMu.Lock()
	defer m.shardMu.Unlock()
	lock, ok := m.shards[orderID]
	if !ok {
		lock = &sync.Mutex{}
		m.shards[orderID] = lock
	}
	return lock
}

func cloneOrder(order *UnifiedOrder) *UnifiedOrder {
	clone := *order
	clone.BuyerInfo = cloneStringMap(order.BuyerInfo)
	clone.ShippingInfo = cloneStringMap(order.ShippingInfo)
	clone.Items = append([]OrderItem(nil), order.Items...)
	clone.Notes = append([]string(nil), order.Notes...)
	if order.RefundAmount != nil {
		refund := *order.RefundAmount
		clone.RefundAmount = &refund
	}
	return &clone
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IngestOrder records a newly-fetched marketplace order as CONFIRMED and
// enqueues it for fulfillment, honoring its priority and ctx's deadline.
func (m *OrderManager) IngestOrder(ctx context.Context, order *UnifiedOrder) error {
	lock := m.shardLock(order.OrderID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	order.Status = OrderConfirmed
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.Priority == "" {
		order.Priority = PriorityNormal
	}

	stored := cloneOrder(order)
	m.mu.Lock()
	m.orders[order.OrderID] = stored
	m.mu.Unlock()

	if err := m.queue.Enqueue(ctx, cloneOrder(stored), order.Priority); err != nil {
		m.logger.WarnWithContext(ctx, "order fulfillment queue enqueue failed", map[string]interface{}{
			"order_id": order.OrderID,
			"error":    err.Error(),
		})
		return err
	}

	m.publish("order_ingested", map[string]interface{}{
		"order_id":    order.OrderID,
		"marketplace": order.Marketplace,
		"priority":    string(order.Priority),
	})
	return nil
}

// ProcessNext dequeues the next order awaiting fulfillment and marks it
// PROCESSING, returning a copy. Reports false when the queue is empty.
func (m *OrderManager) ProcessNext() (*UnifiedOrder, bool) {
	queued, ok := m.queue.Dequeue()
	if !ok {
		return nil, false
	}

	lock := m.shardLock(queued.OrderID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[queued.OrderID]
	if !ok || !CanTransition(order.Status, OrderProcessing) {
		return cloneOrder(queued), true
	}
	order.Status = OrderProcessing
	order.UpdatedAt = time.Now()
	return cloneOrder(order), true
}

// GetOrder returns a copy of a tracked order.
func (m *OrderManager) GetOrder(orderID string) (*UnifiedOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, newError(ErrOrderNotFound, fmt.Sprintf("order not found: %s", orderID))
	}
	return cloneOrder(order), nil
}

// FulfillOrder transitions an order to SHIPPED. Legal only from CONFIRMED
// or PROCESSING; SELF_FULFILLED orders require both trackingNumber and
// carrier. Precondition violations are reported in the returned
// FulfillmentResult, never as an error.
func (m *OrderManager) FulfillOrder(orderID, trackingNumber, carrier, note string) (FulfillmentResult, error) {
	lock := m.shardLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return FulfillmentResult{}, newError(ErrOrderNotFound, fmt.Sprintf("order not found: %s", orderID))
	}

	if order.Status != OrderConfirmed && order.Status != OrderProcessing {
		return FulfillmentResult{
			Success: false,
			Errors:  []string{fmt.Sprintf("Order cannot be fulfilled in status: %s", order.Status)},
		}, nil
	}
	if order.FulfillmentMethod == FulfillmentSelf && (trackingNumber == "" || carrier == "") {
		return FulfillmentResult{
			Success: false,
			Errors:  []string{"self-fulfilled orders require tracking_number and carrier"},
		}, nil
	}

	order.Status = OrderShipped
	if order.FulfillmentMethod == FulfillmentSelf {
		order.TrackingNumber = trackingNumber
		order.Carrier = carrier
	}
	if note != "" {
		order.Notes = append(order.Notes, note)
	}
	order.UpdatedAt = time.Now()

	m.publish("order_fulfilled", map[string]interface{}{
		"order_id":        orderID,
		"tracking_number": trackingNumber,
		"carrier":         carrier,
	})
	return FulfillmentResult{Success: true, Order: cloneOrder(order)}, nil
}

// ProcessReturn transitions an order to RETURNED. Legal only from SHIPPED
// or DELIVERED. refundAmount defaults to the order's total when nil.
func (m *OrderManager) ProcessReturn(orderID, reason string, refundAmount *decimal.Decimal, note string) (FulfillmentResult, error) {
	lock := m.shardLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return FulfillmentResult{}, newError(ErrOrderNotFound, fmt.Sprintf("order not found: %s", orderID))
	}

	if order.Status != OrderShipped && order.Status != OrderDelivered {
		return FulfillmentResult{
			Success: false,
			Errors:  []string{fmt.Sprintf("Order cannot be returned in status: %s", order.Status)},
		}, nil
	}

	order.Status = OrderReturned
	order.ReturnReason = reason
	if refundAmount != nil {
		refund := *refundAmount
		order.RefundAmount = &refund
	} else {
		refund := order.OrderTotal
		order.RefundAmount = &refund
	}
	if note != "" {
		order.Notes = append(order.Notes, note)
	}
	order.UpdatedAt = time.Now()

	m.publish("order_returned", map[string]interface{}{
		"order_id":      orderID,
		"reason":        reason,
		"refund_amount": order.RefundAmount.String(),
	})
	return FulfillmentResult{Success: true, Order: cloneOrder(order)}, nil
}

// QueueDepth reports the number of orders currently awaiting fulfillment.
func (m *OrderManager) QueueDepth() int {
	return m.queue.Size()
}

func (m *OrderManager) publish(name string, payload map[string]interface{}) {
	if err := m.publisher.Publish(decision.Event{Name: name, Payload: payload, Timestamp: time.Now()}); err != nil {
		m.logger.Warn("sync engine event publish failed", map[string]interface{}{"event": name, "error": err.Error()})
	}
}

package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/resilience"
)

// RESTAdapter is the reference Adapter implementation: a generic REST
// client against a marketplace's HTTP API. It exists as a seam for
// integration tests and as a template real marketplace adapters follow,
// not as production coverage for any specific marketplace. Every call is
// guarded by a per-marketplace CircuitBreaker so one degraded marketplace's
// API never starves the others sharing a sync loop.
type RESTAdapter struct {
	client      *resty.Client
	baseURL     string
	marketplace string
	logger      core.Logger
	breaker     *resilience.CircuitBreaker
}

func NewRESTAdapter(marketplaceName, baseURL, apiKey string, logger core.Logger) *RESTAdapter {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetAuthToken(apiKey)
	cfg := resilience.DefaultConfig("marketplace_" + marketplaceName)
	return &RESTAdapter{
		client:      client,
		baseURL:     baseURL,
		marketplace: marketplaceName,
		logger:      logger,
		breaker:     resilience.New(cfg),
	}
}

type fetchOrdersResponse struct {
	Orders     []MarketplaceOrderRaw `json:"orders"`
	NextCursor string                 `json:"next_cursor"`
}

func (a *RESTAdapter) FetchOrdersSince(ctx context.Context, sellerID, cursor string) ([]MarketplaceOrderRaw, string, error) {
	var out fetchOrdersResponse
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetQueryParam("seller_id", sellerID).
			SetQueryParam("cursor", cursor).
			SetResult(&out).
			Get("/orders")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, "", a.unavailable("fetch_orders", err)
	}
	return out.Orders, out.NextCursor, nil
}

func (a *RESTAdapter) SyncInventoryBatch(ctx context.Context, updates map[string]InventoryUpdate) (map[string]SyncResult, error) {
	var out map[string]SyncResult
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetBody(map[string]interface{}{"updates": updates}).
			SetResult(&out).
			Post("/inventory/sync")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, a.unavailable("sync_inventory_batch", err)
	}
	return out, nil
}

func (a *RESTAdapter) PostFulfillment(ctx context.Context, orderRef, trackingNumber, carrier string) error {
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetBody(map[string]string{
				"order_ref":       orderRef,
				"tracking_number": trackingNumber,
				"carrier":         carrier,
			}).
			Post("/fulfillments")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return a.unavailable("post_fulfillment", err)
	}
	return nil
}

func (a *RESTAdapter) QuoteShipment(ctx context.Context, req ShipmentQuoteRequest) ([]ShipmentQuote, error) {
	var out []ShipmentQuote
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			Post("/shipping/quote")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, a.unavailable("quote_shipment", err)
	}
	return out, nil
}

func (a *RESTAdapter) unavailable(op string, err error) error {
	a.logger.Error("marketplace adapter call failed", map[string]interface{}{
		"marketplace": a.marketplace,
		"op":          op,
		"error":       err.Error(),
	})
	return fmt.Errorf("%s: %s: %w: %v", a.marketplace, op, core.ErrUnavailable, err)
}

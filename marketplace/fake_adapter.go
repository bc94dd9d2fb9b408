package marketplace

import "context"

// FakeAdapter is a scriptable Adapter double for the sync engine and order
// manager's tests.
type FakeAdapter struct {
	Orders       []MarketplaceOrderRaw
	NextCursor   string
	SyncResults  map[string]SyncResult
	Quotes       []ShipmentQuote
	FetchErr     error
	SyncErr      error
	FulfillErr   error
	QuoteErr     error
	Fulfillments []string
}

func (a *FakeAdapter) FetchOrdersSince(ctx context.Context, sellerID, cursor string) ([]MarketplaceOrderRaw, string, error) {
	if a.FetchErr != nil {
		return nil, "", a.FetchErr
	}
	return a.Orders, a.NextCursor, nil
}

func (a *FakeAdapter) SyncInventoryBatch(ctx context.Context, updates map[string]InventoryUpdate) (map[string]SyncResult, error) {
	if a.SyncErr != nil {
		return nil, a.SyncErr
	}
	if a.SyncResults != nil {
		return a.SyncResults, nil
	}
	out := make(map[string]SyncResult, len(updates))
	for sku := range updates {
		out[sku] = SyncResult{OK: true}
	}
	return out, nil
}

func (a *FakeAdapter) PostFulfillment(ctx context.Context, orderRef, trackingNumber, carrier string) error {
	if a.FulfillErr != nil {
		return a.FulfillErr
	}
	a.Fulfillments = append(a.Fulfillments, orderRef)
	return nil
}

func (a *FakeAdapter) QuoteShipment(ctx context.Context, req ShipmentQuoteRequest) ([]ShipmentQuote, error) {
	if a.QuoteErr != nil {
		return nil, a.QuoteErr
	}
	return a.Quotes, nil
}

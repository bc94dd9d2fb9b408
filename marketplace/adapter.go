package marketplace

import "context"

// Adapter is the minimum per-marketplace contract the sync engine and order
// manager call through.
type Adapter interface {
	// FetchOrdersSince returns orders placed after cursor for seller, plus
	// the cursor to resume from on the next call.
	FetchOrdersSince(ctx context.Context, sellerID, cursor string) ([]MarketplaceOrderRaw, string, error)

	// SyncInventoryBatch pushes quantity/price/listing updates for a batch
	// of SKUs, returning a per-SKU result so partial failures don't sink
	// the whole batch.
	SyncInventoryBatch(ctx context.Context, updates map[string]InventoryUpdate) (map[string]SyncResult, error)

	// PostFulfillment reports a shipment against a marketplace order.
	PostFulfillment(ctx context.Context, orderRef, trackingNumber, carrier string) error

	// QuoteShipment requests carrier/service offers for a shipment.
	QuoteShipment(ctx context.Context, req ShipmentQuoteRequest) ([]ShipmentQuote, error)
}

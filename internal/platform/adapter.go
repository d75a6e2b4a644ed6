package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fulfillment-hub/internal/models"

	"github.com/shopspring/decimal"
)

// CanonicalOrder is the platform-agnostic order shape produced by adapters.
type CanonicalOrder struct {
	ExternalOrderID   string          `json:"external_order_id"`
	OrderNumber       string          `json:"order_number"`
	CustomerEmail     string          `json:"customer_email"`
	CustomerName      string          `json:"customer_name"`
	CustomerPhone     string          `json:"customer_phone"`
	BillingAddress    []byte          `json:"billing_address,omitempty"`
	ShippingAddress   []byte          `json:"shipping_address,omitempty"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	OrderStatus       string          `json:"order_status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	PaymentStatus     string          `json:"payment_status"`
	Notes             string          `json:"notes"`
	Tags              string          `json:"tags"`
	OrderDate         time.Time       `json:"order_date"`
	Items             []CanonicalItem `json:"items"`
}

// CanonicalItem is a normalized order line item.
type CanonicalItem struct {
	ExternalItemID string          `json:"external_item_id"`
	ProductName    string          `json:"product_name"`
	SKU            string          `json:"sku"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	VariantTitle   string          `json:"variant_title"`
	ProductData    []byte          `json:"product_data,omitempty"`
}

// Adapter is the capability set every storefront platform implements.
// Implementations own their platform's status mapping and pace their own
// upstream calls; callers never throttle on the adapter's behalf.
type Adapter interface {
	FetchOrders(ctx context.Context, since *time.Time, limit int) ([]CanonicalOrder, error)
	FetchOrderDetail(ctx context.Context, externalOrderID string) (*CanonicalOrder, error)
	PushTrackingUpdate(ctx context.Context, externalOrderID, trackingNumber, carrier string) error
}

// Registry resolves and caches one adapter per store, dispatching on the
// store's platform type tag.
type Registry struct {
	mu          sync.Mutex
	adapters    map[int64]Adapter
	httpTimeout time.Duration
	callsPerSec float64
}

// NewRegistry creates an adapter registry
func NewRegistry(httpTimeout time.Duration, callsPerSec float64) *Registry {
	return &Registry{
		adapters:    make(map[int64]Adapter),
		httpTimeout: httpTimeout,
		callsPerSec: callsPerSec,
	}
}

// ForStore returns the adapter for a store, creating it on first use
func (r *Registry) ForStore(store *models.StoreConn) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter, ok := r.adapters[store.ID]; ok {
		return adapter, nil
	}

	var (
		adapter Adapter
		err     error
	)
	switch store.Type {
	case models.PlatformShopify:
		adapter, err = newShopifyAdapter(store, r.httpTimeout, r.callsPerSec)
	case models.PlatformBigCommerce:
		adapter, err = newBigCommerceAdapter(store, r.httpTimeout, r.callsPerSec)
	case models.PlatformWooCommerce:
		adapter, err = newWooCommerceAdapter(store, r.httpTimeout, r.callsPerSec)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", store.Type)
	}
	if err != nil {
		return nil, err
	}

	r.adapters[store.ID] = adapter
	return adapter, nil
}

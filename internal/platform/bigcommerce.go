package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fulfillment-hub/internal/models"
)

type bigCommerceCredentials struct {
	StoreHash   string `json:"store_hash"`
	AccessToken string `json:"access_token"`
}

type bigCommerceAdapter struct {
	api *apiClient
}

func newBigCommerceAdapter(store *models.StoreConn, timeout time.Duration, callsPerSec float64) (*bigCommerceAdapter, error) {
	var creds bigCommerceCredentials
	if err := json.Unmarshal(store.Credentials, &creds); err != nil {
		return nil, fmt.Errorf("bigcommerce: parse credentials: %w", err)
	}
	if creds.StoreHash == "" || creds.AccessToken == "" {
		return nil, fmt.Errorf("bigcommerce: %w: store hash or access token missing", ErrAuth)
	}

	api := newAPIClient("bigcommerce", "https://api.bigcommerce.com/stores/"+creds.StoreHash+"/v2", timeout, callsPerSec)
	api.headers["X-Auth-Token"] = creds.AccessToken

	return &bigCommerceAdapter{api: api}, nil
}

type bigCommerceOrder struct {
	ID              int64                 `json:"id"`
	StatusID        int                   `json:"status_id"`
	BillingAddress  bigCommerceAddress    `json:"billing_address"`
	ShippingAddrs   []json.RawMessage     `json:"shipping_addresses"`
	TotalIncTax     string                `json:"total_inc_tax"`
	CurrencyCode    string                `json:"currency_code"`
	PaymentStatus   string                `json:"payment_status"`
	CustomerMessage string                `json:"customer_message"`
	StaffNotes      string                `json:"staff_notes"`
	DateCreated     bigCommerceDate       `json:"date_created"`
}

type bigCommerceAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// bigCommerceDate handles the RFC 1123 timestamps the v2 API returns.
type bigCommerceDate struct {
	time.Time
}

func (d *bigCommerceDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.RFC1123Z, raw)
	if err != nil {
		return fmt.Errorf("parse bigcommerce date %q: %w", raw, err)
	}
	d.Time = t
	return nil
}

type bigCommerceProduct struct {
	ID             int64             `json:"id"`
	ProductID      int64             `json:"product_id"`
	Name           string            `json:"name"`
	SKU            string            `json:"sku"`
	Quantity       int               `json:"quantity"`
	BasePrice      string            `json:"base_price"`
	TotalIncTax    string            `json:"total_inc_tax"`
	ProductOptions []json.RawMessage `json:"product_options"`
}

// FetchOrders lists orders created since the watermark, then pulls each
// order's line items. The shared limiter paces the list/detail call pairs.
func (a *bigCommerceAdapter) FetchOrders(ctx context.Context, since *time.Time, limit int) ([]CanonicalOrder, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "date_created:desc")
	if since != nil {
		params.Set("min_date_created", since.UTC().Format(time.RFC3339))
	}

	var raw []bigCommerceOrder
	if err := a.api.getJSON(ctx, "/orders", params, &raw); err != nil {
		return nil, err
	}

	orders := make([]CanonicalOrder, 0, len(raw))
	for _, o := range raw {
		items, err := a.fetchItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		orders = append(orders, a.transform(o, items))
	}
	return orders, nil
}

// FetchOrderDetail pulls a single order with its line items
func (a *bigCommerceAdapter) FetchOrderDetail(ctx context.Context, externalOrderID string) (*CanonicalOrder, error) {
	var o bigCommerceOrder
	if err := a.api.getJSON(ctx, "/orders/"+externalOrderID, nil, &o); err != nil {
		return nil, err
	}
	items, err := a.fetchItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	order := a.transform(o, items)
	return &order, nil
}

// PushTrackingUpdate marks the order shipped and attaches tracking details
func (a *bigCommerceAdapter) PushTrackingUpdate(ctx context.Context, externalOrderID, trackingNumber, carrier string) error {
	body := map[string]interface{}{
		"status_id":        2, // shipped
		"tracking_number":  trackingNumber,
		"tracking_carrier": carrier,
	}
	return a.api.sendJSON(ctx, "PUT", "/orders/"+externalOrderID, body, nil)
}

func (a *bigCommerceAdapter) fetchItems(ctx context.Context, orderID int64) ([]bigCommerceProduct, error) {
	var items []bigCommerceProduct
	err := a.api.getJSON(ctx, "/orders/"+strconv.FormatInt(orderID, 10)+"/products", nil, &items)
	return items, err
}

func (a *bigCommerceAdapter) transform(o bigCommerceOrder, products []bigCommerceProduct) CanonicalOrder {
	status := mapBigCommerceStatus(o.StatusID)
	fulfillment := "unfulfilled"
	if status == models.OrderStatusShipped {
		fulfillment = "fulfilled"
	}

	var shipping []byte
	if len(o.ShippingAddrs) > 0 {
		shipping = o.ShippingAddrs[0]
	}
	billing, _ := json.Marshal(o.BillingAddress)

	notes := o.CustomerMessage
	if notes == "" {
		notes = o.StaffNotes
	}

	items := make([]CanonicalItem, 0, len(products))
	for _, p := range products {
		productData, _ := json.Marshal(map[string]interface{}{
			"product_id":      p.ProductID,
			"product_options": p.ProductOptions,
		})
		items = append(items, CanonicalItem{
			ExternalItemID: strconv.FormatInt(p.ID, 10),
			ProductName:    p.Name,
			SKU:            p.SKU,
			Quantity:       p.Quantity,
			UnitPrice:      parseAmount(p.BasePrice),
			TotalPrice:     parseAmount(p.TotalIncTax),
			ProductData:    productData,
		})
	}

	extID := strconv.FormatInt(o.ID, 10)
	return CanonicalOrder{
		ExternalOrderID:   extID,
		OrderNumber:       extID,
		CustomerEmail:     o.BillingAddress.Email,
		CustomerName:      strings.TrimSpace(o.BillingAddress.FirstName + " " + o.BillingAddress.LastName),
		CustomerPhone:     o.BillingAddress.Phone,
		BillingAddress:    billing,
		ShippingAddress:   shipping,
		TotalAmount:       parseAmount(o.TotalIncTax),
		Currency:          defaultCurrency(o.CurrencyCode),
		OrderStatus:       status,
		FulfillmentStatus: fulfillment,
		PaymentStatus:     defaultString(o.PaymentStatus, "pending"),
		Notes:             notes,
		Tags:              "status_" + strconv.Itoa(o.StatusID),
		OrderDate:         o.DateCreated.Time,
		Items:             items,
	}
}

// mapBigCommerceStatus collapses BigCommerce's numeric order status codes
// onto the canonical statuses. Total over the enumerated domain; unknown
// codes fall back to processing.
func mapBigCommerceStatus(statusID int) string {
	switch statusID {
	case 0: // incomplete
		return models.OrderStatusDraft
	case 2, 3, 4, 10, 14: // shipped, partially shipped, refunded, completed, partially refunded
		return models.OrderStatusShipped
	case 5, 6: // cancelled, declined
		return models.OrderStatusCancelled
	case 1, 7, 8, 9, 11, 12, 13:
		return models.OrderStatusProcessing
	default:
		return models.OrderStatusProcessing
	}
}

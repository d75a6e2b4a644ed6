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

	"github.com/shopspring/decimal"
)

type wooCommerceCredentials struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type wooCommerceAdapter struct {
	api *apiClient
}

func newWooCommerceAdapter(store *models.StoreConn, timeout time.Duration, callsPerSec float64) (*wooCommerceAdapter, error) {
	var creds wooCommerceCredentials
	if err := json.Unmarshal(store.Credentials, &creds); err != nil {
		return nil, fmt.Errorf("woocommerce: parse credentials: %w", err)
	}
	if creds.ConsumerKey == "" || creds.ConsumerSecret == "" {
		return nil, fmt.Errorf("woocommerce: %w: consumer key or secret missing", ErrAuth)
	}

	api := newAPIClient("woocommerce", strings.TrimRight(store.StoreURL, "/")+"/wp-json/wc/v3", timeout, callsPerSec)
	api.username = creds.ConsumerKey
	api.password = creds.ConsumerSecret

	return &wooCommerceAdapter{api: api}, nil
}

type wooCommerceOrder struct {
	ID           int64                 `json:"id"`
	Number       string                `json:"number"`
	Status       string                `json:"status"`
	Total        string                `json:"total"`
	Currency     string                `json:"currency"`
	Billing      wooCommerceAddress    `json:"billing"`
	Shipping     json.RawMessage       `json:"shipping"`
	CustomerNote string                `json:"customer_note"`
	DateCreated  string                `json:"date_created_gmt"`
	LineItems    []wooCommerceLineItem `json:"line_items"`
}

type wooCommerceAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type wooCommerceLineItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	Total       string          `json:"total"`
	ProductID   int64           `json:"product_id"`
	VariationID int64           `json:"variation_id"`
	MetaData    json.RawMessage `json:"meta_data"`
}

// FetchOrders pulls orders modified since the watermark; line items come
// embedded, so one call covers the page.
func (a *wooCommerceAdapter) FetchOrders(ctx context.Context, since *time.Time, limit int) ([]CanonicalOrder, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("orderby", "date")
	params.Set("order", "desc")
	if since != nil {
		params.Set("modified_after", since.UTC().Format("2006-01-02T15:04:05"))
	}

	var raw []wooCommerceOrder
	if err := a.api.getJSON(ctx, "/orders", params, &raw); err != nil {
		return nil, err
	}

	orders := make([]CanonicalOrder, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, a.transform(o))
	}
	return orders, nil
}

// FetchOrderDetail pulls a single order by its platform ID
func (a *wooCommerceAdapter) FetchOrderDetail(ctx context.Context, externalOrderID string) (*CanonicalOrder, error) {
	var o wooCommerceOrder
	if err := a.api.getJSON(ctx, "/orders/"+externalOrderID, nil, &o); err != nil {
		return nil, err
	}
	order := a.transform(o)
	return &order, nil
}

// PushTrackingUpdate completes the order and stores tracking in order meta
func (a *wooCommerceAdapter) PushTrackingUpdate(ctx context.Context, externalOrderID, trackingNumber, carrier string) error {
	body := map[string]interface{}{
		"status": "completed",
		"meta_data": []map[string]string{
			{"key": "_tracking_number", "value": trackingNumber},
			{"key": "_tracking_carrier", "value": carrier},
		},
	}
	return a.api.sendJSON(ctx, "PUT", "/orders/"+externalOrderID, body, nil)
}

func (a *wooCommerceAdapter) transform(o wooCommerceOrder) CanonicalOrder {
	status := mapWooCommerceStatus(o.Status)
	fulfillment := "unfulfilled"
	if status == models.OrderStatusShipped {
		fulfillment = "fulfilled"
	}

	orderDate, err := time.Parse("2006-01-02T15:04:05", o.DateCreated)
	if err != nil {
		orderDate = time.Now().UTC()
	}

	items := make([]CanonicalItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		total := parseAmount(li.Total)
		unit := decimal.Zero
		if li.Quantity > 0 {
			unit = total.Div(decimal.NewFromInt(int64(li.Quantity)))
		}
		productData, _ := json.Marshal(map[string]interface{}{
			"product_id":   li.ProductID,
			"variation_id": li.VariationID,
		})
		variant := ""
		if li.VariationID != 0 {
			variant = "variation " + strconv.FormatInt(li.VariationID, 10)
		}
		items = append(items, CanonicalItem{
			ExternalItemID: strconv.FormatInt(li.ID, 10),
			ProductName:    li.Name,
			SKU:            li.SKU,
			Quantity:       li.Quantity,
			UnitPrice:      unit,
			TotalPrice:     total,
			VariantTitle:   variant,
			ProductData:    productData,
		})
	}

	billing, _ := json.Marshal(o.Billing)

	paymentStatus := "pending"
	switch o.Status {
	case "processing", "completed":
		paymentStatus = "paid"
	case "refunded":
		paymentStatus = "refunded"
	}

	return CanonicalOrder{
		ExternalOrderID:   strconv.FormatInt(o.ID, 10),
		OrderNumber:       o.Number,
		CustomerEmail:     o.Billing.Email,
		CustomerName:      strings.TrimSpace(o.Billing.FirstName + " " + o.Billing.LastName),
		CustomerPhone:     o.Billing.Phone,
		BillingAddress:    billing,
		ShippingAddress:   o.Shipping,
		TotalAmount:       parseAmount(o.Total),
		Currency:          defaultCurrency(o.Currency),
		OrderStatus:       status,
		FulfillmentStatus: fulfillment,
		PaymentStatus:     paymentStatus,
		Notes:             o.CustomerNote,
		Tags:              "wc_" + o.Status,
		OrderDate:         orderDate,
		Items:             items,
	}
}

// mapWooCommerceStatus collapses WooCommerce order status slugs onto the
// canonical statuses. Unknown slugs fall back to processing.
func mapWooCommerceStatus(status string) string {
	switch status {
	case "checkout-draft", "auto-draft":
		return models.OrderStatusDraft
	case "completed":
		return models.OrderStatusShipped
	case "cancelled", "refunded", "failed", "trash":
		return models.OrderStatusCancelled
	case "pending", "processing", "on-hold":
		return models.OrderStatusProcessing
	default:
		return models.OrderStatusProcessing
	}
}

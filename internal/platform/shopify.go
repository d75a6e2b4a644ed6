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

const shopifyAPIVersion = "2023-10"

type shopifyCredentials struct {
	AccessToken string `json:"access_token"`
}

type shopifyAdapter struct {
	api *apiClient
}

func newShopifyAdapter(store *models.StoreConn, timeout time.Duration, callsPerSec float64) (*shopifyAdapter, error) {
	var creds shopifyCredentials
	if err := json.Unmarshal(store.Credentials, &creds); err != nil {
		return nil, fmt.Errorf("shopify: parse credentials: %w", err)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("shopify: %w: access token missing", ErrAuth)
	}

	api := newAPIClient("shopify", strings.TrimRight(store.StoreURL, "/")+"/admin/api/"+shopifyAPIVersion, timeout, callsPerSec)
	api.headers["X-Shopify-Access-Token"] = creds.AccessToken

	return &shopifyAdapter{api: api}, nil
}

type shopifyOrder struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Phone             string            `json:"phone"`
	Customer          shopifyCustomer   `json:"customer"`
	BillingAddress    json.RawMessage   `json:"billing_address"`
	ShippingAddress   json.RawMessage   `json:"shipping_address"`
	TotalPrice        string            `json:"total_price"`
	Currency          string            `json:"currency"`
	FinancialStatus   string            `json:"financial_status"`
	FulfillmentStatus string            `json:"fulfillment_status"`
	Note              string            `json:"note"`
	Tags              string            `json:"tags"`
	CancelledAt       *time.Time        `json:"cancelled_at"`
	CreatedAt         time.Time         `json:"created_at"`
	LineItems         []shopifyLineItem `json:"line_items"`
}

type shopifyCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type shopifyLineItem struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	SKU          string `json:"sku"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
	VariantID    int64  `json:"variant_id"`
	VariantTitle string `json:"variant_title"`
	ProductID    int64  `json:"product_id"`
}

// FetchOrders pulls orders updated since the watermark
func (a *shopifyAdapter) FetchOrders(ctx context.Context, since *time.Time, limit int) ([]CanonicalOrder, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("status", "any")
	if since != nil {
		params.Set("updated_at_min", since.UTC().Format(time.RFC3339))
	}

	var payload struct {
		Orders []shopifyOrder `json:"orders"`
	}
	if err := a.api.getJSON(ctx, "/orders.json", params, &payload); err != nil {
		return nil, err
	}

	orders := make([]CanonicalOrder, 0, len(payload.Orders))
	for _, o := range payload.Orders {
		orders = append(orders, a.transform(o))
	}
	return orders, nil
}

// FetchOrderDetail pulls a single order by its platform ID
func (a *shopifyAdapter) FetchOrderDetail(ctx context.Context, externalOrderID string) (*CanonicalOrder, error) {
	var payload struct {
		Order shopifyOrder `json:"order"`
	}
	if err := a.api.getJSON(ctx, "/orders/"+externalOrderID+".json", nil, &payload); err != nil {
		return nil, err
	}
	order := a.transform(payload.Order)
	return &order, nil
}

// PushTrackingUpdate creates a fulfillment carrying the tracking details
func (a *shopifyAdapter) PushTrackingUpdate(ctx context.Context, externalOrderID, trackingNumber, carrier string) error {
	body := map[string]interface{}{
		"fulfillment": map[string]interface{}{
			"tracking_number":  trackingNumber,
			"tracking_company": carrier,
			"notify_customer":  true,
		},
	}
	return a.api.sendJSON(ctx, "POST", "/orders/"+externalOrderID+"/fulfillments.json", body, nil)
}

func (a *shopifyAdapter) transform(o shopifyOrder) CanonicalOrder {
	name := strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
	phone := o.Phone
	if phone == "" {
		phone = o.Customer.Phone
	}

	items := make([]CanonicalItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		unit := parseAmount(li.Price)
		productData, _ := json.Marshal(map[string]interface{}{
			"product_id": li.ProductID,
			"variant_id": li.VariantID,
		})
		items = append(items, CanonicalItem{
			ExternalItemID: strconv.FormatInt(li.ID, 10),
			ProductName:    li.Title,
			SKU:            li.SKU,
			Quantity:       li.Quantity,
			UnitPrice:      unit,
			TotalPrice:     unit.Mul(decimal.NewFromInt(int64(li.Quantity))),
			VariantTitle:   li.VariantTitle,
			ProductData:    productData,
		})
	}

	status := mapShopifyStatus(o.FulfillmentStatus, o.CancelledAt)
	fulfillment := "unfulfilled"
	if status == models.OrderStatusShipped {
		fulfillment = "fulfilled"
	}

	return CanonicalOrder{
		ExternalOrderID:   strconv.FormatInt(o.ID, 10),
		OrderNumber:       strings.TrimPrefix(o.Name, "#"),
		CustomerEmail:     o.Email,
		CustomerName:      name,
		CustomerPhone:     phone,
		BillingAddress:    o.BillingAddress,
		ShippingAddress:   o.ShippingAddress,
		TotalAmount:       parseAmount(o.TotalPrice),
		Currency:          defaultCurrency(o.Currency),
		OrderStatus:       status,
		FulfillmentStatus: fulfillment,
		PaymentStatus:     defaultString(o.FinancialStatus, "pending"),
		Notes:             o.Note,
		Tags:              o.Tags,
		OrderDate:         o.CreatedAt,
		Items:             items,
	}
}

// mapShopifyStatus collapses Shopify's fulfillment vocabulary onto the
// canonical order statuses. Total over its input domain; unmapped values
// fall back to processing.
func mapShopifyStatus(fulfillmentStatus string, cancelledAt *time.Time) string {
	if cancelledAt != nil {
		return models.OrderStatusCancelled
	}
	switch fulfillmentStatus {
	case "fulfilled":
		return models.OrderStatusShipped
	case "partial", "unfulfilled", "":
		return models.OrderStatusProcessing
	default:
		return models.OrderStatusProcessing
	}
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func defaultCurrency(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

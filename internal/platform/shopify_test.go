package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fulfillment-hub/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShopifyAdapter(t *testing.T, serverURL string) *shopifyAdapter {
	t.Helper()
	conn := &models.StoreConn{
		ID:          1,
		Type:        models.PlatformShopify,
		StoreURL:    serverURL,
		Credentials: []byte(`{"access_token":"test-token"}`),
	}
	adapter, err := newShopifyAdapter(conn, 5*time.Second, 1000)
	require.NoError(t, err)
	return adapter
}

func TestNewShopifyAdapterRejectsMissingToken(t *testing.T) {
	conn := &models.StoreConn{
		Type:        models.PlatformShopify,
		StoreURL:    "https://example.myshopify.com",
		Credentials: []byte(`{}`),
	}
	_, err := newShopifyAdapter(conn, 5*time.Second, 2)
	assert.True(t, errors.Is(err, ErrAuth))
}

func TestShopifyFetchOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Shopify-Access-Token"))
		assert.Equal(t, "/admin/api/2023-10/orders.json", r.URL.Path)
		assert.Equal(t, "any", r.URL.Query().Get("status"))
		assert.NotEmpty(t, r.URL.Query().Get("updated_at_min"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"orders": []map[string]interface{}{
				{
					"id":                 450789469,
					"name":               "#1001",
					"email":              "bob@example.com",
					"customer":           map[string]interface{}{"first_name": "Bob", "last_name": "Norman"},
					"total_price":        "409.94",
					"currency":           "USD",
					"financial_status":   "paid",
					"fulfillment_status": "fulfilled",
					"created_at":         "2024-03-01T10:00:00Z",
					"line_items": []map[string]interface{}{
						{"id": 1, "title": "Widget", "sku": "W-1", "quantity": 2, "price": "199.97"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	adapter := newTestShopifyAdapter(t, srv.URL)
	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	orders, err := adapter.FetchOrders(context.Background(), &since, 50)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, "450789469", o.ExternalOrderID)
	assert.Equal(t, "1001", o.OrderNumber)
	assert.Equal(t, "Bob Norman", o.CustomerName)
	assert.Equal(t, models.OrderStatusShipped, o.OrderStatus)
	assert.True(t, decimal.RequireFromString("409.94").Equal(o.TotalAmount))

	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("399.94").Equal(o.Items[0].TotalPrice))
}

func TestShopifyErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		sentinel  error
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuth, false},
		{"forbidden", http.StatusForbidden, ErrUnsupportedScope, false},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited, true},
		{"server error", http.StatusInternalServerError, ErrTransient, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			adapter := newTestShopifyAdapter(t, srv.URL)
			_, err := adapter.FetchOrders(context.Background(), nil, 50)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel), "want %v in %v", tc.sentinel, err)
			assert.Equal(t, tc.retryable, Retryable(err))
		})
	}
}

func TestShopifyPushTrackingUpdate(t *testing.T) {
	var got map[string]map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2023-10/orders/450789469/fulfillments.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	adapter := newTestShopifyAdapter(t, srv.URL)
	err := adapter.PushTrackingUpdate(context.Background(), "450789469", "1Z999", "UPS")
	require.NoError(t, err)

	assert.Equal(t, "1Z999", got["fulfillment"]["tracking_number"])
	assert.Equal(t, "UPS", got["fulfillment"]["tracking_company"])
}

func TestMapShopifyStatus(t *testing.T) {
	now := time.Now()
	assert.Equal(t, models.OrderStatusCancelled, mapShopifyStatus("fulfilled", &now))
	assert.Equal(t, models.OrderStatusShipped, mapShopifyStatus("fulfilled", nil))
	assert.Equal(t, models.OrderStatusProcessing, mapShopifyStatus("partial", nil))
	assert.Equal(t, models.OrderStatusProcessing, mapShopifyStatus("", nil))
	assert.Equal(t, models.OrderStatusProcessing, mapShopifyStatus("restocked", nil))
}

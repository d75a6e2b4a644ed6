package platform

import (
	"encoding/json"
	"testing"
	"time"

	"fulfillment-hub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDispatchesOnPlatformType(t *testing.T) {
	registry := NewRegistry(5*time.Second, 2)

	shopify := &models.StoreConn{
		ID:          1,
		Type:        models.PlatformShopify,
		StoreURL:    "https://demo.myshopify.com",
		Credentials: []byte(`{"access_token":"tok"}`),
	}
	adapter, err := registry.ForStore(shopify)
	require.NoError(t, err)
	assert.IsType(t, &shopifyAdapter{}, adapter)

	// Same store resolves to the same cached adapter.
	again, err := registry.ForStore(shopify)
	require.NoError(t, err)
	assert.Same(t, adapter, again)

	woo := &models.StoreConn{
		ID:          2,
		Type:        models.PlatformWooCommerce,
		StoreURL:    "https://shop.example.com",
		Credentials: []byte(`{"consumer_key":"ck","consumer_secret":"cs"}`),
	}
	adapter, err = registry.ForStore(woo)
	require.NoError(t, err)
	assert.IsType(t, &wooCommerceAdapter{}, adapter)

	bc := &models.StoreConn{
		ID:          3,
		Type:        models.PlatformBigCommerce,
		StoreURL:    "https://store.example.com",
		Credentials: []byte(`{"store_hash":"abc123","access_token":"tok"}`),
	}
	adapter, err = registry.ForStore(bc)
	require.NoError(t, err)
	assert.IsType(t, &bigCommerceAdapter{}, adapter)
}

func TestRegistryRejectsUnknownPlatform(t *testing.T) {
	registry := NewRegistry(5*time.Second, 2)
	_, err := registry.ForStore(&models.StoreConn{ID: 9, Type: "magento"})
	assert.Error(t, err)
}

func TestMapBigCommerceStatus(t *testing.T) {
	assert.Equal(t, models.OrderStatusDraft, mapBigCommerceStatus(0))
	for _, id := range []int{2, 3, 4, 10, 14} {
		assert.Equal(t, models.OrderStatusShipped, mapBigCommerceStatus(id), "status_id %d", id)
	}
	for _, id := range []int{5, 6} {
		assert.Equal(t, models.OrderStatusCancelled, mapBigCommerceStatus(id), "status_id %d", id)
	}
	for _, id := range []int{1, 7, 8, 9, 11, 12, 13} {
		assert.Equal(t, models.OrderStatusProcessing, mapBigCommerceStatus(id), "status_id %d", id)
	}
	assert.Equal(t, models.OrderStatusProcessing, mapBigCommerceStatus(99))
}

func TestMapWooCommerceStatus(t *testing.T) {
	assert.Equal(t, models.OrderStatusDraft, mapWooCommerceStatus("checkout-draft"))
	assert.Equal(t, models.OrderStatusShipped, mapWooCommerceStatus("completed"))
	assert.Equal(t, models.OrderStatusCancelled, mapWooCommerceStatus("refunded"))
	assert.Equal(t, models.OrderStatusProcessing, mapWooCommerceStatus("on-hold"))
	assert.Equal(t, models.OrderStatusProcessing, mapWooCommerceStatus("some-plugin-status"))
}

func TestBigCommerceDateUnmarshal(t *testing.T) {
	var d bigCommerceDate
	require.NoError(t, json.Unmarshal([]byte(`"Tue, 20 Feb 2024 15:04:05 +0000"`), &d))
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.February, d.Month())

	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.True(t, d.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"2024-02-20T15:04:05Z"`), &d))
}

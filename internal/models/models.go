package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformType identifies which storefront platform a store runs on.
type PlatformType string

const (
	PlatformShopify     PlatformType = "shopify"
	PlatformBigCommerce PlatformType = "bigcommerce"
	PlatformWooCommerce PlatformType = "woocommerce"
)

// StoreConn represents a configured storefront connection
type StoreConn struct {
	ID          int64        `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Type        PlatformType `db:"type" json:"type"`
	StoreURL    string       `db:"store_url" json:"store_url"`
	Credentials []byte       `db:"api_credentials" json:"-"`
	IsActive    bool         `db:"is_active" json:"is_active"`
	SyncEnabled bool         `db:"sync_enabled" json:"sync_enabled"`
	LastSyncAt  *time.Time   `db:"last_sync_at" json:"last_sync_at,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// Order is the canonical order representation, keyed by (store_id, external_order_id)
type Order struct {
	ID                int64           `db:"id" json:"id"`
	StoreID           int64           `db:"store_id" json:"store_id"`
	ExternalOrderID   string          `db:"external_order_id" json:"external_order_id"`
	OrderNumber       string          `db:"order_number" json:"order_number"`
	CustomerEmail     string          `db:"customer_email" json:"customer_email"`
	CustomerName      string          `db:"customer_name" json:"customer_name"`
	CustomerPhone     string          `db:"customer_phone" json:"customer_phone"`
	BillingAddress    []byte          `db:"billing_address" json:"billing_address,omitempty"`
	ShippingAddress   []byte          `db:"shipping_address" json:"shipping_address,omitempty"`
	TotalAmount       decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency          string          `db:"currency" json:"currency"`
	OrderStatus       string          `db:"order_status" json:"order_status"`
	FulfillmentStatus string          `db:"fulfillment_status" json:"fulfillment_status"`
	PaymentStatus     string          `db:"payment_status" json:"payment_status"`
	Notes             string          `db:"notes" json:"notes"`
	Tags              string          `db:"tags" json:"tags"`
	OrderDate         time.Time       `db:"order_date" json:"order_date"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem belongs to exactly one order; replaced wholesale on each re-sync
type OrderItem struct {
	ID             int64           `db:"id" json:"id"`
	OrderID        int64           `db:"order_id" json:"order_id"`
	ExternalItemID string          `db:"external_item_id" json:"external_item_id"`
	ProductName    string          `db:"product_name" json:"product_name"`
	SKU            string          `db:"sku" json:"sku"`
	Quantity       int             `db:"quantity" json:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice     decimal.Decimal `db:"total_price" json:"total_price"`
	VariantTitle   string          `db:"variant_title" json:"variant_title"`
	ProductData    []byte          `db:"product_data" json:"product_data,omitempty"`
}

// Vendor is a fulfillment actor; only approved vendors may receive assignments
type Vendor struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"user_id"`
	CompanyName    string          `db:"company_name" json:"company_name"`
	CommissionRate decimal.Decimal `db:"commission_rate" json:"commission_rate"`
	IsApproved     bool            `db:"is_approved" json:"is_approved"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// VendorAssignment links one order to one vendor
type VendorAssignment struct {
	ID               int64           `db:"id" json:"id"`
	OrderID          int64           `db:"order_id" json:"order_id"`
	VendorID         int64           `db:"vendor_id" json:"vendor_id"`
	AssignedBy       int64           `db:"assigned_by" json:"assigned_by"`
	AssignmentType   string          `db:"assignment_type" json:"assignment_type"`
	CommissionAmount decimal.Decimal `db:"commission_amount" json:"commission_amount"`
	Status           string          `db:"status" json:"status"`
	Notes            string          `db:"notes" json:"notes"`
	AssignedAt       time.Time       `db:"assigned_at" json:"assigned_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItemAssignment ties a partial assignment to a specific order item
type OrderItemAssignment struct {
	ID                 int64           `db:"id" json:"id"`
	VendorAssignmentID int64           `db:"vendor_assignment_id" json:"vendor_assignment_id"`
	OrderItemID        int64           `db:"order_item_id" json:"order_item_id"`
	Quantity           int             `db:"quantity" json:"quantity"`
	AssignedAmount     decimal.Decimal `db:"assigned_amount" json:"assigned_amount"`
}

// StatusHistory is an append-only audit row; never mutated or deleted
type StatusHistory struct {
	ID                 int64     `db:"id" json:"id"`
	OrderID            int64     `db:"order_id" json:"order_id"`
	VendorAssignmentID *int64    `db:"vendor_assignment_id" json:"vendor_assignment_id,omitempty"`
	ChangedBy          int64     `db:"changed_by" json:"changed_by"`
	OldStatus          string    `db:"old_status" json:"old_status"`
	NewStatus          string    `db:"new_status" json:"new_status"`
	Notes              string    `db:"notes" json:"notes"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// TrackingRecord belongs to one vendor assignment
type TrackingRecord struct {
	ID                 int64      `db:"id" json:"id"`
	OrderID            int64      `db:"order_id" json:"order_id"`
	VendorAssignmentID int64      `db:"vendor_assignment_id" json:"vendor_assignment_id"`
	TrackingNumber     string     `db:"tracking_number" json:"tracking_number"`
	Carrier            string     `db:"carrier" json:"carrier"`
	TrackingURL        string     `db:"tracking_url" json:"tracking_url"`
	ShippedDate        *time.Time `db:"shipped_date" json:"shipped_date,omitempty"`
	DeliveredDate      *time.Time `db:"delivered_date" json:"delivered_date,omitempty"`
	Status             string     `db:"status" json:"status"`
	Notes              string     `db:"notes" json:"notes"`
	CreatedBy          int64      `db:"created_by" json:"created_by"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Notification is a queued "notify user X about event Y" record; delivery is external
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Data      []byte    `db:"data" json:"data,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order statuses. Adapters only map upstream codes onto draft, processing,
// shipped and cancelled; the rest are local lifecycle values driven by
// assignment aggregation.
const (
	OrderStatusDraft      = "draft"
	OrderStatusProcessing = "processing"
	OrderStatusAssigned   = "assigned"
	OrderStatusShipped    = "shipped"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Assignment statuses
const (
	AssignmentStatusAssigned   = "assigned"
	AssignmentStatusAccepted   = "accepted"
	AssignmentStatusInProgress = "in_progress"
	AssignmentStatusShipped    = "shipped"
	AssignmentStatusCompleted  = "completed"
	AssignmentStatusCancelled  = "cancelled"
)

// Assignment types
const (
	AssignmentTypeFull    = "full"
	AssignmentTypePartial = "partial"
)

// Tracking statuses
const (
	TrackingStatusShipped   = "shipped"
	TrackingStatusDelivered = "delivered"
)

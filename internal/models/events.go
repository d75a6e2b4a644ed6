package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSyncRequested           = "SYNC_REQUESTED"
	EventTypeOrderSynced             = "ORDER_SYNCED"
	EventTypeVendorAssigned          = "VENDOR_ASSIGNED"
	EventTypeOrderSplit              = "ORDER_SPLIT"
	EventTypeAssignmentStatusChanged = "ASSIGNMENT_STATUS_CHANGED"
	EventTypeTrackingRecorded        = "TRACKING_RECORDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event envelope
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// SyncRequestedEvent asks the sync worker to pull one store on demand
type SyncRequestedEvent struct {
	BaseEvent
	StoreID int64 `json:"store_id"`
}

// OrderSyncedEvent published after an order is upserted from a platform
type OrderSyncedEvent struct {
	BaseEvent
	StoreID         int64  `json:"store_id"`
	OrderID         int64  `json:"order_id"`
	ExternalOrderID string `json:"external_order_id"`
}

// VendorAssignedEvent published when a vendor receives a full assignment
type VendorAssignedEvent struct {
	BaseEvent
	OrderID          int64           `json:"order_id"`
	AssignmentID     int64           `json:"assignment_id"`
	VendorID         int64           `json:"vendor_id"`
	VendorUserID     int64           `json:"vendor_user_id"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
}

// OrderSplitEvent published when an order is split across vendors
type OrderSplitEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	SplitsCreated int             `json:"splits_created"`
	TotalAssigned decimal.Decimal `json:"total_assigned"`
}

// AssignmentStatusChangedEvent published on every state-machine transition
type AssignmentStatusChangedEvent struct {
	BaseEvent
	OrderID      int64  `json:"order_id"`
	AssignmentID int64  `json:"assignment_id"`
	OldStatus    string `json:"old_status"`
	NewStatus    string `json:"new_status"`
	ChangedBy    int64  `json:"changed_by"`
}

// TrackingRecordedEvent published when a vendor records shipment tracking
type TrackingRecordedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	AssignmentID   int64  `json:"assignment_id"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

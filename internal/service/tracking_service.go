package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fulfillment-hub/internal/broker"
	"fulfillment-hub/internal/models"
	"fulfillment-hub/internal/store"
	"fulfillment-hub/internal/util"
)

// RecordTrackingRequest adds shipment tracking to a vendor assignment.
type RecordTrackingRequest struct {
	OrderID            int64  `json:"order_id" binding:"required"`
	VendorAssignmentID int64  `json:"vendor_assignment_id" binding:"required"`
	TrackingNumber     string `json:"tracking_number" binding:"required"`
	Carrier            string `json:"carrier" binding:"required"`
	TrackingURL        string `json:"tracking_url"`
	Notes              string `json:"notes"`
}

// UpdateTrackingRequest updates an existing tracking record's status.
type UpdateTrackingRequest struct {
	Status        string     `json:"status" binding:"required,oneof=shipped delivered"`
	DeliveredDate *time.Time `json:"delivered_date"`
	Notes         string     `json:"notes"`
}

// TrackingService records shipment tracking and drives the assignment
// transitions that follow from it.
type TrackingService struct {
	store       *store.Store
	fulfillment *FulfillmentService
	publisher   *broker.EventPublisher
	logger      *zap.Logger
}

// NewTrackingService creates a new TrackingService
func NewTrackingService(st *store.Store, fulfillment *FulfillmentService, publisher *broker.EventPublisher) *TrackingService {
	return &TrackingService{
		store:       st,
		fulfillment: fulfillment,
		publisher:   publisher,
		logger:      util.GetLogger(),
	}
}

// RecordTracking persists a tracking record and moves the owning assignment
// to shipped through the normal transition path, which re-derives the order
// status and pushes upstream when the whole order has shipped.
func (ts *TrackingService) RecordTracking(ctx context.Context, actor Actor, req *RecordTrackingRequest) (*models.TrackingRecord, error) {
	ctx, span := util.StartSpan(ctx, "TrackingService.RecordTracking")
	defer span.End()

	assignment, err := ts.store.GetAssignmentByID(ctx, req.VendorAssignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.OrderID != req.OrderID {
		return nil, fmt.Errorf("assignment %d does not belong to order %d: %w",
			req.VendorAssignmentID, req.OrderID, models.ErrAssignmentNotFound)
	}
	if err := ts.fulfillment.authorize(ctx, actor, assignment); err != nil {
		return nil, err
	}

	record := &models.TrackingRecord{
		OrderID:            req.OrderID,
		VendorAssignmentID: req.VendorAssignmentID,
		TrackingNumber:     req.TrackingNumber,
		Carrier:            req.Carrier,
		TrackingURL:        req.TrackingURL,
		Status:             models.TrackingStatusShipped,
		Notes:              req.Notes,
		CreatedBy:          actor.UserID,
	}
	if err := ts.store.CreateTracking(ctx, record); err != nil {
		return nil, err
	}

	ts.logger.Info("tracking recorded",
		zap.Int64("order_id", req.OrderID),
		zap.Int64("assignment_id", req.VendorAssignmentID),
		zap.String("carrier", req.Carrier),
		zap.String("tracking_number", req.TrackingNumber))

	// The record is kept even if the transition is rejected; the caller
	// learns about the rejection and can retry once the assignment is in a
	// shippable state.
	note := fmt.Sprintf("Tracking added: %s %s", req.Carrier, req.TrackingNumber)
	if _, err := ts.fulfillment.Transition(ctx, assignment.ID, actor, models.AssignmentStatusShipped, note); err != nil {
		return record, err
	}

	ts.notifyTrackingAdded(ctx, assignment, record)

	if ts.publisher != nil {
		event := &models.TrackingRecordedEvent{
			BaseEvent:      models.NewBaseEvent(models.EventTypeTrackingRecorded),
			OrderID:        req.OrderID,
			AssignmentID:   req.VendorAssignmentID,
			TrackingNumber: req.TrackingNumber,
			Carrier:        req.Carrier,
		}
		if err := ts.publisher.PublishTrackingRecorded(ctx, event); err != nil {
			ts.logger.Warn("failed to publish tracking recorded event", zap.Error(err))
		}
	}

	return record, nil
}

// notifyTrackingAdded queues a notification for the operator who made the
// assignment. Best effort; a failure never unwinds the tracking record.
func (ts *TrackingService) notifyTrackingAdded(ctx context.Context, assignment *models.VendorAssignment, record *models.TrackingRecord) {
	data, _ := json.Marshal(map[string]int64{
		"order_id":      record.OrderID,
		"assignment_id": assignment.ID,
		"tracking_id":   record.ID,
	})
	n := &models.Notification{
		UserID:  assignment.AssignedBy,
		Type:    "tracking_added",
		Title:   "Shipment Tracking Added",
		Message: fmt.Sprintf("Tracking added: %s %s", record.Carrier, record.TrackingNumber),
		Data:    data,
	}
	if err := ts.store.CreateNotification(ctx, n); err != nil {
		ts.logger.Warn("failed to queue tracking notification",
			zap.Int64("order_id", record.OrderID), zap.Error(err))
	}
}

// UpdateTracking updates a tracking record; only the assignment's vendor or
// an operator may touch it. Marking it delivered completes the owning
// assignment and re-derives the order status.
func (ts *TrackingService) UpdateTracking(ctx context.Context, actor Actor, trackingID int64, req *UpdateTrackingRequest) (*models.TrackingRecord, error) {
	ctx, span := util.StartSpan(ctx, "TrackingService.UpdateTracking")
	defer span.End()

	existing, err := ts.store.GetTrackingByID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	assignment, err := ts.store.GetAssignmentByID(ctx, existing.VendorAssignmentID)
	if err != nil {
		return nil, err
	}
	if err := ts.fulfillment.authorize(ctx, actor, assignment); err != nil {
		return nil, err
	}

	deliveredDate := req.DeliveredDate
	if req.Status == models.TrackingStatusDelivered && deliveredDate == nil {
		now := time.Now().UTC()
		deliveredDate = &now
	}

	record, err := ts.store.UpdateTracking(ctx, trackingID, req.Status, deliveredDate, req.Notes)
	if err != nil {
		return nil, err
	}

	if req.Status == models.TrackingStatusDelivered && existing.Status != models.TrackingStatusDelivered {
		note := fmt.Sprintf("Delivered: %s %s", record.Carrier, record.TrackingNumber)
		if _, err := ts.fulfillment.Transition(ctx, assignment.ID, actor, models.AssignmentStatusCompleted, note); err != nil {
			return record, err
		}
	}

	return record, nil
}

// GetOrderTracking lists tracking records for an order, newest first.
func (ts *TrackingService) GetOrderTracking(ctx context.Context, orderID int64) ([]models.TrackingRecord, error) {
	if _, err := ts.store.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	return ts.store.GetTrackingByOrderID(ctx, orderID)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fulfillment-hub/internal/broker"
	"fulfillment-hub/internal/models"
	"fulfillment-hub/internal/store"
	"fulfillment-hub/internal/util"
)

// Actor roles
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleVendor  = "vendor"
)

// Actor identifies who is performing an operation.
type Actor struct {
	UserID int64
	Role   string
}

// IsOperator reports whether the actor may act on any assignment
func (a Actor) IsOperator() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}

// allowedTransitions is the assignment state machine. Completed and cancelled
// are terminal. in_progress -> assigned lets an operator hand work back.
var allowedTransitions = map[string][]string{
	models.AssignmentStatusAssigned:   {models.AssignmentStatusAccepted, models.AssignmentStatusCancelled},
	models.AssignmentStatusAccepted:   {models.AssignmentStatusInProgress, models.AssignmentStatusCancelled},
	models.AssignmentStatusInProgress: {models.AssignmentStatusShipped, models.AssignmentStatusCompleted, models.AssignmentStatusAssigned},
	models.AssignmentStatusShipped:    {models.AssignmentStatusCompleted},
	models.AssignmentStatusCompleted:  {},
	models.AssignmentStatusCancelled:  {},
}

// CanTransition reports whether an assignment may move from one status to another.
func CanTransition(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// FulfillmentService drives assignment status transitions and keeps the
// owning order's status in step with its assignments.
type FulfillmentService struct {
	store     *store.Store
	adapters  AdapterResolver
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewFulfillmentService creates a new FulfillmentService
func NewFulfillmentService(st *store.Store, adapters AdapterResolver, publisher *broker.EventPublisher) *FulfillmentService {
	return &FulfillmentService{
		store:     st,
		adapters:  adapters,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Transition moves an assignment to a new status, appends a history row and
// re-derives the order's status. The database update is guarded on the status
// the caller observed, so a concurrent transition loses cleanly.
func (fs *FulfillmentService) Transition(ctx context.Context, assignmentID int64, actor Actor, newStatus, notes string) (*models.VendorAssignment, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.Transition")
	defer span.End()

	assignment, err := fs.store.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	if err := fs.authorize(ctx, actor, assignment); err != nil {
		util.TransitionsRejectedTotal.WithLabelValues("forbidden").Inc()
		return nil, err
	}

	if !CanTransition(assignment.Status, newStatus) {
		util.TransitionsRejectedTotal.WithLabelValues("invalid_transition").Inc()
		return nil, fmt.Errorf("cannot move assignment from %s to %s: %w",
			assignment.Status, newStatus, models.ErrInvalidTransition)
	}

	oldStatus := assignment.Status
	if err := fs.store.TransitionAssignmentTx(ctx, assignmentID, oldStatus, newStatus, actor.UserID, notes); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			util.TransitionsRejectedTotal.WithLabelValues("stale_status").Inc()
		}
		return nil, err
	}
	util.TransitionsTotal.WithLabelValues(newStatus).Inc()

	fs.logger.Info("assignment transitioned",
		zap.Int64("assignment_id", assignmentID),
		zap.Int64("order_id", assignment.OrderID),
		zap.String("old_status", oldStatus),
		zap.String("new_status", newStatus))

	if fs.publisher != nil {
		event := &models.AssignmentStatusChangedEvent{
			BaseEvent:    models.NewBaseEvent(models.EventTypeAssignmentStatusChanged),
			OrderID:      assignment.OrderID,
			AssignmentID: assignmentID,
			OldStatus:    oldStatus,
			NewStatus:    newStatus,
			ChangedBy:    actor.UserID,
		}
		if err := fs.publisher.PublishAssignmentStatusChanged(ctx, event); err != nil {
			fs.logger.Warn("failed to publish assignment status event", zap.Error(err))
		}
	}

	fs.ReconcileOrderStatus(ctx, assignment.OrderID, actor.UserID)

	return fs.store.GetAssignmentByID(ctx, assignmentID)
}

// authorize permits operators on any assignment and a vendor user only on
// assignments belonging to their own vendor record.
func (fs *FulfillmentService) authorize(ctx context.Context, actor Actor, assignment *models.VendorAssignment) error {
	if actor.IsOperator() {
		return nil
	}
	vendor, err := fs.store.GetVendorByID(ctx, assignment.VendorID)
	if err != nil {
		return err
	}
	if vendor.UserID != actor.UserID {
		return fmt.Errorf("user %d may not act on assignment %d: %w",
			actor.UserID, assignment.ID, models.ErrForbidden)
	}
	return nil
}

// AggregateOrderStatus derives an order status from its assignments. The
// second return is false when the assignments imply no change: an empty set,
// or a mix that is still mid-flight.
func AggregateOrderStatus(assignments []models.VendorAssignment) (string, bool) {
	if len(assignments) == 0 {
		return "", false
	}

	active := 0
	shippedOrDone := 0
	completed := 0
	for _, a := range assignments {
		if a.Status == models.AssignmentStatusCancelled {
			continue
		}
		active++
		switch a.Status {
		case models.AssignmentStatusShipped:
			shippedOrDone++
		case models.AssignmentStatusCompleted:
			shippedOrDone++
			completed++
		}
	}

	// Every assignment cancelled: the order goes back to the unassigned pool.
	if active == 0 {
		return models.OrderStatusProcessing, true
	}
	if completed == active {
		return models.OrderStatusCompleted, true
	}
	if shippedOrDone == active {
		return models.OrderStatusShipped, true
	}
	return "", false
}

// ReconcileOrderStatus re-derives the order status from its assignments and,
// when the order reaches shipped or completed, pushes tracking upstream.
// Both halves are best effort: a failure is logged and never unwinds the
// transition that triggered the reconcile.
func (fs *FulfillmentService) ReconcileOrderStatus(ctx context.Context, orderID, actorID int64) {
	assignments, err := fs.store.GetAssignmentsByOrderID(ctx, orderID)
	if err != nil {
		fs.logger.Error("failed to load assignments for order status reconcile",
			zap.Int64("order_id", orderID), zap.Error(err))
		return
	}

	status, changed := AggregateOrderStatus(assignments)
	if !changed {
		return
	}

	note := fmt.Sprintf("Order status derived from vendor assignments: %s", status)
	if err := fs.store.SetOrderStatusWithHistory(ctx, orderID, actorID, status, note); err != nil {
		fs.logger.Error("failed to update derived order status",
			zap.Int64("order_id", orderID), zap.String("status", status), zap.Error(err))
		return
	}

	if status == models.OrderStatusShipped || status == models.OrderStatusCompleted {
		fs.pushTrackingUpstream(ctx, orderID)
	}
}

// pushTrackingUpstream sends the most recent tracking record for an order back
// to the store's platform. Missing tracking still pushes the status change.
func (fs *FulfillmentService) pushTrackingUpstream(ctx context.Context, orderID int64) {
	order, err := fs.store.GetOrderByID(ctx, orderID)
	if err != nil {
		fs.logger.Error("failed to load order for tracking push",
			zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	conn, err := fs.store.GetStoreByID(ctx, order.StoreID)
	if err != nil {
		fs.logger.Error("failed to load store for tracking push",
			zap.Int64("store_id", order.StoreID), zap.Error(err))
		return
	}
	adapter, err := fs.adapters.ForStore(conn)
	if err != nil {
		fs.logger.Error("failed to resolve adapter for tracking push",
			zap.Int64("store_id", conn.ID), zap.Error(err))
		return
	}

	var trackingNumber, carrier string
	if records, err := fs.store.GetTrackingByOrderID(ctx, orderID); err != nil {
		fs.logger.Warn("failed to load tracking records for push",
			zap.Int64("order_id", orderID), zap.Error(err))
	} else if len(records) > 0 {
		trackingNumber = records[0].TrackingNumber
		carrier = records[0].Carrier
	}

	if err := adapter.PushTrackingUpdate(ctx, order.ExternalOrderID, trackingNumber, carrier); err != nil {
		util.TrackingPushTotal.WithLabelValues("failed").Inc()
		fs.logger.Error("failed to push tracking update upstream",
			zap.Int64("order_id", orderID),
			zap.String("external_order_id", order.ExternalOrderID),
			zap.String("platform", string(conn.Type)),
			zap.Error(err))
		return
	}
	util.TrackingPushTotal.WithLabelValues("success").Inc()
	fs.logger.Info("pushed tracking update upstream",
		zap.Int64("order_id", orderID),
		zap.String("external_order_id", order.ExternalOrderID),
		zap.String("tracking_number", trackingNumber))
}

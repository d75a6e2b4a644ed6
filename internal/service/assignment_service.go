package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fulfillment-hub/internal/broker"
	"fulfillment-hub/internal/models"
	"fulfillment-hub/internal/store"
	"fulfillment-hub/internal/util"
)

// AssignFullRequest assigns a whole order to one vendor.
type AssignFullRequest struct {
	VendorID int64  `json:"vendor_id" binding:"required"`
	Notes    string `json:"notes"`
}

// SplitRequest distributes an order's items across several vendors.
type SplitRequest struct {
	Splits []models.SplitInput `json:"splits" binding:"required,min=1,dive"`
}

// SplitResult is the outcome of a committed split.
type SplitResult struct {
	OrderID       int64                     `json:"order_id"`
	SplitsCreated int                       `json:"splits_created"`
	TotalAssigned decimal.Decimal           `json:"total_assigned"`
	Assignments   []models.VendorAssignment `json:"assignments"`
}

// SplitPreviewItem is one item slice inside a previewed split.
type SplitPreviewItem struct {
	ItemID      int64           `json:"item_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// SplitPreviewEntry is one vendor's computed share in a preview.
type SplitPreviewEntry struct {
	VendorID         int64              `json:"vendor_id"`
	CompanyName      string             `json:"company_name"`
	CommissionRate   decimal.Decimal    `json:"commission_rate"`
	SplitAmount      decimal.Decimal    `json:"split_amount"`
	CommissionAmount decimal.Decimal    `json:"commission_amount"`
	Items            []SplitPreviewItem `json:"items"`
}

// SplitPreview shows what a split would assign, without committing anything.
type SplitPreview struct {
	OrderID          int64               `json:"order_id"`
	TotalOrderAmount decimal.Decimal     `json:"total_order_amount"`
	TotalAssigned    decimal.Decimal     `json:"total_assigned"`
	Unassigned       decimal.Decimal     `json:"unassigned"`
	Splits           []SplitPreviewEntry `json:"splits"`
}

// OrderSplitDetail is one existing assignment with its item breakdown.
type OrderSplitDetail struct {
	Assignment models.VendorAssignment      `json:"assignment"`
	Items      []models.OrderItemAssignment `json:"items,omitempty"`
}

// AssignmentService creates vendor assignments, whole-order or split.
type AssignmentService struct {
	store     *store.Store
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(st *store.Store, publisher *broker.EventPublisher) *AssignmentService {
	return &AssignmentService{
		store:     st,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// AssignFull assigns the entire order to one vendor, replacing any earlier
// non-terminal assignments. Commission is the vendor's rate applied to the
// order total.
func (as *AssignmentService) AssignFull(ctx context.Context, orderID int64, actor Actor, req *AssignFullRequest) (*models.VendorAssignment, error) {
	ctx, span := util.StartSpan(ctx, "AssignmentService.AssignFull")
	defer span.End()

	order, err := as.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	vendor, err := as.store.GetVendorByID(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}
	if !vendor.IsApproved {
		util.AssignmentsRejectedTotal.WithLabelValues("vendor_not_approved").Inc()
		return nil, fmt.Errorf("vendor %d: %w", vendor.ID, models.ErrVendorNotApproved)
	}

	assignment := &models.VendorAssignment{
		OrderID:          orderID,
		VendorID:         vendor.ID,
		AssignedBy:       actor.UserID,
		AssignmentType:   models.AssignmentTypeFull,
		CommissionAmount: models.Commission(order.TotalAmount, vendor.CommissionRate),
		Status:           models.AssignmentStatusAssigned,
		Notes:            req.Notes,
	}

	historyNote := fmt.Sprintf("Assigned to %s", vendor.CompanyName)
	if err := as.store.CreateFullAssignmentTx(ctx, assignment, vendor, historyNote); err != nil {
		if errorIsOverAllocation(err) {
			util.AssignmentsRejectedTotal.WithLabelValues("over_allocation").Inc()
		}
		return nil, err
	}
	util.AssignmentsCreatedTotal.WithLabelValues(models.AssignmentTypeFull).Inc()

	as.logger.Info("order assigned to vendor",
		zap.Int64("order_id", orderID),
		zap.Int64("vendor_id", vendor.ID),
		zap.Int64("assignment_id", assignment.ID),
		zap.String("commission", assignment.CommissionAmount.String()))

	if as.publisher != nil {
		event := &models.VendorAssignedEvent{
			BaseEvent:        models.NewBaseEvent(models.EventTypeVendorAssigned),
			OrderID:          orderID,
			AssignmentID:     assignment.ID,
			VendorID:         vendor.ID,
			VendorUserID:     vendor.UserID,
			CommissionAmount: assignment.CommissionAmount,
		}
		if err := as.publisher.PublishVendorAssigned(ctx, event); err != nil {
			as.logger.Warn("failed to publish vendor assigned event", zap.Error(err))
		}
	}

	return assignment, nil
}

// SplitAssign commits a split, replacing earlier non-terminal assignments in
// the same transaction that creates the new ones.
func (as *AssignmentService) SplitAssign(ctx context.Context, orderID int64, actor Actor, req *SplitRequest) (*SplitResult, error) {
	ctx, span := util.StartSpan(ctx, "AssignmentService.SplitAssign")
	defer span.End()

	if _, err := as.store.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	vendors, err := as.loadApprovedVendors(ctx, req.Splits)
	if err != nil {
		return nil, err
	}

	assignments, totalAssigned, err := as.store.SplitAssignTx(ctx, orderID, actor.UserID, req.Splits, vendors)
	if err != nil {
		if errorIsOverAllocation(err) {
			util.AssignmentsRejectedTotal.WithLabelValues("over_allocation").Inc()
		}
		return nil, err
	}
	util.AssignmentsCreatedTotal.WithLabelValues(models.AssignmentTypePartial).Add(float64(len(assignments)))

	as.logger.Info("order split among vendors",
		zap.Int64("order_id", orderID),
		zap.Int("splits", len(assignments)),
		zap.String("total_assigned", totalAssigned.String()))

	if as.publisher != nil {
		event := &models.OrderSplitEvent{
			BaseEvent:     models.NewBaseEvent(models.EventTypeOrderSplit),
			OrderID:       orderID,
			SplitsCreated: len(assignments),
			TotalAssigned: totalAssigned,
		}
		if err := as.publisher.PublishOrderSplit(ctx, event); err != nil {
			as.logger.Warn("failed to publish order split event", zap.Error(err))
		}
	}

	return &SplitResult{
		OrderID:       orderID,
		SplitsCreated: len(assignments),
		TotalAssigned: totalAssigned,
		Assignments:   assignments,
	}, nil
}

// PreviewSplit computes per-vendor amounts and commissions for a proposed
// split without writing anything. It runs the same arithmetic the commit
// path uses, so the preview never drifts from what a commit would produce.
func (as *AssignmentService) PreviewSplit(ctx context.Context, orderID int64, req *SplitRequest) (*SplitPreview, error) {
	ctx, span := util.StartSpan(ctx, "AssignmentService.PreviewSplit")
	defer span.End()

	if _, err := as.store.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	items, err := as.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	itemsByID := make(map[int64]models.OrderItem, len(items))
	totalOrder := decimal.Zero
	for _, item := range items {
		itemsByID[item.ID] = item
		totalOrder = totalOrder.Add(item.TotalPrice)
	}

	vendors, err := as.loadApprovedVendors(ctx, req.Splits)
	if err != nil {
		return nil, err
	}

	preview := &SplitPreview{
		OrderID:          orderID,
		TotalOrderAmount: totalOrder,
		TotalAssigned:    decimal.Zero,
		Splits:           make([]SplitPreviewEntry, 0, len(req.Splits)),
	}
	for _, split := range req.Splits {
		vendor := vendors[split.VendorID]
		amount := models.SplitAmount(itemsByID, split)
		entry := SplitPreviewEntry{
			VendorID:         vendor.ID,
			CompanyName:      vendor.CompanyName,
			CommissionRate:   vendor.CommissionRate,
			SplitAmount:      amount,
			CommissionAmount: models.Commission(amount, vendor.CommissionRate),
			Items:            make([]SplitPreviewItem, 0, len(split.Items)),
		}
		for _, alloc := range split.Items {
			item, ok := itemsByID[alloc.ItemID]
			if !ok {
				return nil, fmt.Errorf("item %d: %w", alloc.ItemID, models.ErrItemNotInOrder)
			}
			entry.Items = append(entry.Items, SplitPreviewItem{
				ItemID:      item.ID,
				ProductName: item.ProductName,
				SKU:         item.SKU,
				Quantity:    alloc.Quantity,
				UnitPrice:   item.UnitPrice,
				Amount:      item.UnitPrice.Mul(decimal.NewFromInt(int64(alloc.Quantity))),
			})
		}
		preview.TotalAssigned = preview.TotalAssigned.Add(amount)
		preview.Splits = append(preview.Splits, entry)
	}
	preview.Unassigned = totalOrder.Sub(preview.TotalAssigned)

	return preview, nil
}

// GetOrderSplits lists an order's assignments with item breakdowns for the
// partial ones.
func (as *AssignmentService) GetOrderSplits(ctx context.Context, orderID int64) ([]OrderSplitDetail, error) {
	if _, err := as.store.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	assignments, err := as.store.GetAssignmentsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	details := make([]OrderSplitDetail, 0, len(assignments))
	for _, assignment := range assignments {
		detail := OrderSplitDetail{Assignment: assignment}
		if assignment.AssignmentType == models.AssignmentTypePartial {
			items, err := as.store.GetItemAssignments(ctx, assignment.ID)
			if err != nil {
				return nil, err
			}
			detail.Items = items
		}
		details = append(details, detail)
	}
	return details, nil
}

// loadApprovedVendors resolves every vendor referenced by a split request and
// rejects the whole request if any of them is missing or unapproved.
func (as *AssignmentService) loadApprovedVendors(ctx context.Context, splits []models.SplitInput) (map[int64]*models.Vendor, error) {
	vendors := make(map[int64]*models.Vendor, len(splits))
	for _, split := range splits {
		if _, ok := vendors[split.VendorID]; ok {
			continue
		}
		vendor, err := as.store.GetVendorByID(ctx, split.VendorID)
		if err != nil {
			return nil, err
		}
		if !vendor.IsApproved {
			util.AssignmentsRejectedTotal.WithLabelValues("vendor_not_approved").Inc()
			return nil, fmt.Errorf("vendor %d: %w", vendor.ID, models.ErrVendorNotApproved)
		}
		vendors[split.VendorID] = vendor
	}
	return vendors, nil
}

func errorIsOverAllocation(err error) bool {
	return errors.Is(err, models.ErrOverAllocation)
}

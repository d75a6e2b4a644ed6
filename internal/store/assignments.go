package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fulfillment-hub/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Assignment statuses that survive a destructive re-split. Completed work
// keeps its commission and allocation on the books; cancelled rows stay for
// the audit trail but release their item quantities.
const terminalStatuses = "('completed', 'cancelled')"

// CreateFullAssignmentTx gives one vendor the whole order, replacing any
// non-terminal prior assignments. Fails with ErrOverAllocation when a
// completed assignment already holds part of the order. The order row is
// locked so a concurrent split cannot race past the check.
func (s *Store) CreateFullAssignmentTx(ctx context.Context, assignment *models.VendorAssignment, vendor *models.Vendor, historyNote string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", assignment.OrderID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("order %d: %w", assignment.OrderID, models.ErrOrderNotFound)
	}
	if err != nil {
		return err
	}

	var completed int
	err = tx.GetContext(ctx, &completed,
		"SELECT COUNT(*) FROM vendor_assignments WHERE order_id = $1 AND status = 'completed'",
		assignment.OrderID)
	if err != nil {
		return err
	}
	if completed > 0 {
		return fmt.Errorf("order %d already has completed assignments: %w", assignment.OrderID, models.ErrOverAllocation)
	}

	if err := clearNonTerminalAssignments(ctx, tx, assignment.OrderID); err != nil {
		return err
	}

	err = tx.GetContext(ctx, assignment, `
		INSERT INTO vendor_assignments (
			order_id, vendor_id, assigned_by, assignment_type, commission_amount, notes, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, assigned_at, updated_at`,
		assignment.OrderID, assignment.VendorID, assignment.AssignedBy, assignment.AssignmentType,
		assignment.CommissionAmount, assignment.Notes, assignment.Status)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, vendor_assignment_id, changed_by, old_status, new_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		assignment.OrderID, assignment.ID, assignment.AssignedBy,
		order.OrderStatus, models.OrderStatusAssigned, historyNote)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET order_status = $1, updated_at = NOW() WHERE id = $2",
		models.OrderStatusAssigned, assignment.OrderID)
	if err != nil {
		return err
	}

	notifData, _ := json.Marshal(map[string]int64{
		"order_id":      assignment.OrderID,
		"assignment_id": assignment.ID,
	})
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, title, message, data)
		VALUES ($1, 'order_assignment', 'New Order Assignment', $2, $3)`,
		vendor.UserID,
		fmt.Sprintf("You have been assigned order #%s", order.OrderNumber),
		notifData)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// SplitAssignTx partitions an order's items across vendors in a single
// all-or-nothing transaction. The order row lock serializes concurrent
// splits; the allocation check runs inside the lock so two racing requests
// cannot both pass it.
func (s *Store) SplitAssignTx(ctx context.Context, orderID, actorID int64, splits []models.SplitInput, vendors map[int64]*models.Vendor) ([]models.VendorAssignment, decimal.Decimal, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, decimal.Zero, fmt.Errorf("order %d: %w", orderID, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, decimal.Zero, err
	}

	var items []models.OrderItem
	if err := tx.SelectContext(ctx, &items, "SELECT * FROM order_items WHERE order_id = $1", orderID); err != nil {
		return nil, decimal.Zero, err
	}
	itemsByID := make(map[int64]models.OrderItem, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	reserved, err := reservedQuantities(ctx, tx, orderID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	if err := models.CheckAllocation(itemsByID, reserved, splits); err != nil {
		return nil, decimal.Zero, err
	}

	if err := clearNonTerminalAssignments(ctx, tx, orderID); err != nil {
		return nil, decimal.Zero, err
	}

	assignments := make([]models.VendorAssignment, 0, len(splits))
	totalAssigned := decimal.Zero

	for _, split := range splits {
		vendor := vendors[split.VendorID]
		splitAmount := models.SplitAmount(itemsByID, split)
		commission := models.Commission(splitAmount, vendor.CommissionRate)

		assignment := models.VendorAssignment{
			OrderID:          orderID,
			VendorID:         split.VendorID,
			AssignedBy:       actorID,
			AssignmentType:   models.AssignmentTypePartial,
			CommissionAmount: commission,
			Status:           models.AssignmentStatusAssigned,
			Notes:            split.Notes,
		}
		err = tx.GetContext(ctx, &assignment, `
			INSERT INTO vendor_assignments (
				order_id, vendor_id, assigned_by, assignment_type, commission_amount, notes, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, assigned_at, updated_at`,
			assignment.OrderID, assignment.VendorID, assignment.AssignedBy, assignment.AssignmentType,
			assignment.CommissionAmount, assignment.Notes, assignment.Status)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to create split assignment: %w", err)
		}

		for _, alloc := range split.Items {
			item := itemsByID[alloc.ItemID]
			assignedAmount := item.UnitPrice.Mul(decimal.NewFromInt(int64(alloc.Quantity)))
			_, err = tx.ExecContext(ctx, `
				INSERT INTO order_item_assignments (vendor_assignment_id, order_item_id, quantity, assigned_amount)
				VALUES ($1, $2, $3, $4)`,
				assignment.ID, alloc.ItemID, alloc.Quantity, assignedAmount)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("failed to create item assignment: %w", err)
			}
		}

		notifData, _ := json.Marshal(map[string]interface{}{
			"order_id":      orderID,
			"assignment_id": assignment.ID,
			"split_amount":  splitAmount,
		})
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications (user_id, type, title, message, data)
			VALUES ($1, 'order_split_assignment', 'Order Split Assignment', $2, $3)`,
			vendor.UserID,
			fmt.Sprintf("You have been assigned items from order #%s", order.OrderNumber),
			notifData)
		if err != nil {
			return nil, decimal.Zero, err
		}

		totalAssigned = totalAssigned.Add(splitAmount)
		assignments = append(assignments, assignment)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, changed_by, old_status, new_status, notes)
		VALUES ($1, $2, $3, 'split_assigned', $4)`,
		orderID, actorID, order.OrderStatus,
		fmt.Sprintf("Order split among %d vendors. Total assigned: $%s", len(splits), totalAssigned.StringFixed(2)))
	if err != nil {
		return nil, decimal.Zero, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET order_status = $1, updated_at = NOW() WHERE id = $2",
		models.OrderStatusAssigned, orderID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, err
	}
	return assignments, totalAssigned, nil
}

// GetAssignmentByID retrieves a vendor assignment by ID
func (s *Store) GetAssignmentByID(ctx context.Context, id int64) (*models.VendorAssignment, error) {
	var a models.VendorAssignment
	err := s.db.GetContext(ctx, &a, "SELECT * FROM vendor_assignments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assignment %d: %w", id, models.ErrAssignmentNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAssignmentsByOrderID retrieves all assignments for an order
func (s *Store) GetAssignmentsByOrderID(ctx context.Context, orderID int64) ([]models.VendorAssignment, error) {
	var assignments []models.VendorAssignment
	err := s.db.SelectContext(ctx, &assignments,
		"SELECT * FROM vendor_assignments WHERE order_id = $1 ORDER BY assigned_at", orderID)
	return assignments, err
}

// GetItemAssignments retrieves the item slices behind a partial assignment
func (s *Store) GetItemAssignments(ctx context.Context, assignmentID int64) ([]models.OrderItemAssignment, error) {
	var items []models.OrderItemAssignment
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_item_assignments WHERE vendor_assignment_id = $1 ORDER BY id", assignmentID)
	return items, err
}

// TransitionAssignmentTx applies a status transition with an optimistic
// guard: the row must still be in the expected from-state at write time.
// Zero rows affected means a concurrent writer won.
func (s *Store) TransitionAssignmentTx(ctx context.Context, assignmentID int64, from, to string, actorID int64, notes string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var orderID int64
	err = tx.GetContext(ctx, &orderID, `
		UPDATE vendor_assignments SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING order_id`,
		to, assignmentID, from)
	if err == sql.ErrNoRows {
		return fmt.Errorf("assignment %d no longer in status %s: %w", assignmentID, from, models.ErrInvalidTransition)
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, vendor_assignment_id, changed_by, old_status, new_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, assignmentID, actorID, from, to, notes)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func clearNonTerminalAssignments(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM order_item_assignments WHERE vendor_assignment_id IN (
			SELECT id FROM vendor_assignments WHERE order_id = $1 AND status NOT IN `+terminalStatuses+`
		)`, orderID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"DELETE FROM vendor_assignments WHERE order_id = $1 AND status NOT IN "+terminalStatuses,
		orderID)
	return err
}

// reservedQuantities sums item quantities held by completed assignments,
// which survive a re-split and still count against the allocation budget.
func reservedQuantities(ctx context.Context, tx *sqlx.Tx, orderID int64) (map[int64]int, error) {
	rows := []struct {
		OrderItemID int64 `db:"order_item_id"`
		Quantity    int   `db:"quantity"`
	}{}
	err := tx.SelectContext(ctx, &rows, `
		SELECT oia.order_item_id, COALESCE(SUM(oia.quantity), 0) AS quantity
		FROM order_item_assignments oia
		JOIN vendor_assignments va ON va.id = oia.vendor_assignment_id
		WHERE va.order_id = $1 AND va.status = 'completed'
		GROUP BY oia.order_item_id`, orderID)
	if err != nil {
		return nil, err
	}

	reserved := make(map[int64]int, len(rows))
	for _, row := range rows {
		reserved[row.OrderItemID] = row.Quantity
	}
	return reserved, nil
}

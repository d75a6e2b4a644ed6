package store

import (
	"context"
	"database/sql"
	"fmt"

	"fulfillment-hub/internal/models"
)

// UpsertOrderTx upserts a canonical order and replaces its item set in one
// transaction. The conflict target (store_id, external_order_id) makes
// re-syncing an unchanged order a safe no-op in effect: identical values are
// reapplied, mutable fields are overwritten, and rows are never duplicated.
func (s *Store) UpsertOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO orders (
			store_id, external_order_id, order_number, customer_email, customer_name,
			customer_phone, billing_address, shipping_address, total_amount, currency,
			order_status, fulfillment_status, payment_status, notes, tags, order_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (store_id, external_order_id)
		DO UPDATE SET
			order_number = EXCLUDED.order_number,
			customer_email = EXCLUDED.customer_email,
			customer_name = EXCLUDED.customer_name,
			customer_phone = EXCLUDED.customer_phone,
			billing_address = EXCLUDED.billing_address,
			shipping_address = EXCLUDED.shipping_address,
			total_amount = EXCLUDED.total_amount,
			currency = EXCLUDED.currency,
			order_status = EXCLUDED.order_status,
			fulfillment_status = EXCLUDED.fulfillment_status,
			payment_status = EXCLUDED.payment_status,
			notes = EXCLUDED.notes,
			tags = EXCLUDED.tags,
			updated_at = NOW()
		RETURNING id`

	var orderID int64
	err = tx.GetContext(ctx, &orderID, upsert,
		order.StoreID, order.ExternalOrderID, order.OrderNumber, order.CustomerEmail,
		order.CustomerName, order.CustomerPhone, order.BillingAddress, order.ShippingAddress,
		order.TotalAmount, order.Currency, order.OrderStatus, order.FulfillmentStatus,
		order.PaymentStatus, order.Notes, order.Tags, order.OrderDate)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert order %s: %w", order.ExternalOrderID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return 0, fmt.Errorf("failed to clear items for order %d: %w", orderID, err)
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, external_item_id, product_name, sku, quantity,
				unit_price, total_price, variant_title, product_data
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			orderID, item.ExternalItemID, item.ProductName, item.SKU, item.Quantity,
			item.UnitPrice, item.TotalPrice, item.VariantTitle, item.ProductData)
		if err != nil {
			return 0, fmt.Errorf("failed to insert item %s for order %d: %w", item.ExternalItemID, orderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return orderID, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// SetOrderStatusWithHistory updates the order's derived status and appends
// the audit row in one transaction.
func (s *Store) SetOrderStatusWithHistory(ctx context.Context, orderID, actorID int64, newStatus, notes string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var oldStatus string
	err = tx.GetContext(ctx, &oldStatus, "SELECT order_status FROM orders WHERE id = $1", orderID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("order %d: %w", orderID, models.ErrOrderNotFound)
	}
	if err != nil {
		return err
	}
	if oldStatus == newStatus {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET order_status = $1, updated_at = NOW() WHERE id = $2",
		newStatus, orderID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, changed_by, old_status, new_status, notes)
		VALUES ($1, $2, $3, $4, $5)`,
		orderID, actorID, oldStatus, newStatus, notes)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetStatusHistory retrieves the append-only audit trail for an order
func (s *Store) GetStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistory, error) {
	var history []models.StatusHistory
	err := s.db.SelectContext(ctx, &history,
		"SELECT * FROM order_status_history WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	return history, err
}

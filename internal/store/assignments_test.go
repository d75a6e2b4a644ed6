package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-hub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderRowsForLock() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "store_id", "external_order_id", "order_number", "customer_email",
		"customer_name", "customer_phone", "billing_address", "shipping_address",
		"total_amount", "currency", "order_status", "fulfillment_status",
		"payment_status", "notes", "tags", "order_date", "created_at", "updated_at",
	}).AddRow(
		42, 1, "ext-1001", "1001", "bob@example.com",
		"Bob Norman", "", nil, nil,
		"409.94", "USD", "processing", "unfulfilled",
		"paid", "", "", time.Now(), time.Now(), time.Now())
}

func orderItemRowsForSplit() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "order_id", "external_item_id", "product_name", "sku",
		"quantity", "unit_price", "total_price", "variant_title", "product_data",
	}).
		AddRow(1, 42, "li-1", "Widget", "W-1", 2, "10.00", "20.00", "", nil).
		AddRow(2, 42, "li-2", "Gadget", "G-1", 3, "20.00", "60.00", "", nil)
}

func reservedRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"order_item_id", "quantity"})
}

func TestSplitAssignTx(t *testing.T) {
	st, mock := newMockStore(t)

	splits := []models.SplitInput{
		{VendorID: 7, Items: []models.SplitItemInput{{ItemID: 1, Quantity: 2}}},
		{VendorID: 8, Items: []models.SplitItemInput{{ItemID: 2, Quantity: 3}}},
	}
	vendors := map[int64]*models.Vendor{
		7: {ID: 7, UserID: 70, CompanyName: "Acme Fulfillment", CommissionRate: decimal.NewFromInt(5)},
		8: {ID: 8, UserID: 80, CompanyName: "Globex Logistics", CommissionRate: decimal.NewFromInt(10)},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM orders WHERE id .* FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(orderRowsForLock())
	mock.ExpectQuery("SELECT \\* FROM order_items WHERE order_id").
		WithArgs(int64(42)).
		WillReturnRows(orderItemRowsForSplit())
	mock.ExpectQuery("SELECT oia.order_item_id").
		WithArgs(int64(42)).
		WillReturnRows(reservedRows())
	mock.ExpectExec("DELETE FROM order_item_assignments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM vendor_assignments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO vendor_assignments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assigned_at", "updated_at"}).
			AddRow(11, time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_item_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO vendor_assignments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assigned_at", "updated_at"}).
			AddRow(12, time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_item_assignments").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO order_status_history").
		WithArgs(int64(42), int64(9), "processing",
			"Order split among 2 vendors. Total assigned: $80.00").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders SET order_status").
		WithArgs("assigned", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assignments, totalAssigned, err := st.SplitAssignTx(context.Background(), 42, 9, splits, vendors)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "80.00", totalAssigned.StringFixed(2))
	assert.Equal(t, int64(11), assignments[0].ID)
	assert.Equal(t, "1.00", assignments[0].CommissionAmount.StringFixed(2))
	assert.Equal(t, int64(12), assignments[1].ID)
	assert.Equal(t, "6.00", assignments[1].CommissionAmount.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSplitAssignTxOverAllocationRollsBack(t *testing.T) {
	st, mock := newMockStore(t)

	// Item 1 only has quantity 2; nothing may be cleared or inserted.
	splits := []models.SplitInput{
		{VendorID: 7, Items: []models.SplitItemInput{{ItemID: 1, Quantity: 3}}},
	}
	vendors := map[int64]*models.Vendor{
		7: {ID: 7, UserID: 70, CommissionRate: decimal.NewFromInt(5)},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM orders WHERE id .* FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(orderRowsForLock())
	mock.ExpectQuery("SELECT \\* FROM order_items WHERE order_id").
		WithArgs(int64(42)).
		WillReturnRows(orderItemRowsForSplit())
	mock.ExpectQuery("SELECT oia.order_item_id").
		WithArgs(int64(42)).
		WillReturnRows(reservedRows())
	mock.ExpectRollback()

	assignments, _, err := st.SplitAssignTx(context.Background(), 42, 9, splits, vendors)
	assert.True(t, errors.Is(err, models.ErrOverAllocation))
	assert.Empty(t, assignments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFullAssignmentTx(t *testing.T) {
	st, mock := newMockStore(t)

	assignment := &models.VendorAssignment{
		OrderID:          42,
		VendorID:         7,
		AssignedBy:       9,
		AssignmentType:   models.AssignmentTypeFull,
		CommissionAmount: decimal.RequireFromString("40.99"),
		Status:           models.AssignmentStatusAssigned,
	}
	vendor := &models.Vendor{ID: 7, UserID: 70, CompanyName: "Acme Fulfillment"}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM orders WHERE id .* FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(orderRowsForLock())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM vendor_assignments").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("DELETE FROM order_item_assignments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM vendor_assignments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO vendor_assignments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assigned_at", "updated_at"}).
			AddRow(5, time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_status_history").
		WithArgs(int64(42), int64(5), int64(9), "processing", "assigned", "Assigned to Acme Fulfillment").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE orders SET order_status").
		WithArgs("assigned", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := st.CreateFullAssignmentTx(context.Background(), assignment, vendor, "Assigned to Acme Fulfillment")
	require.NoError(t, err)
	assert.Equal(t, int64(5), assignment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFullAssignmentTxRejectsCompletedWork(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM orders WHERE id .* FOR UPDATE").
		WithArgs(int64(42)).
		WillReturnRows(orderRowsForLock())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM vendor_assignments").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := st.CreateFullAssignmentTx(context.Background(),
		&models.VendorAssignment{OrderID: 42, VendorID: 7, Status: models.AssignmentStatusAssigned},
		&models.Vendor{ID: 7}, "")
	assert.True(t, errors.Is(err, models.ErrOverAllocation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFullAssignmentTxOrderNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM orders WHERE id .* FOR UPDATE").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := st.CreateFullAssignmentTx(context.Background(),
		&models.VendorAssignment{OrderID: 404}, &models.Vendor{}, "")
	assert.True(t, errors.Is(err, models.ErrOrderNotFound))
}

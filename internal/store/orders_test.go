package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-hub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStoreFromDB(sqlx.NewDb(db, "sqlmock")), mock
}

func TestUpsertOrderTxReplacesItems(t *testing.T) {
	st, mock := newMockStore(t)

	order := &models.Order{
		StoreID:         1,
		ExternalOrderID: "ext-1001",
		OrderNumber:     "1001",
		CustomerEmail:   "bob@example.com",
		TotalAmount:     decimal.RequireFromString("409.94"),
		Currency:        "USD",
		OrderStatus:     models.OrderStatusProcessing,
		OrderDate:       time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	items := []models.OrderItem{
		{ExternalItemID: "li-1", ProductName: "Widget", Quantity: 2,
			UnitPrice: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(20)},
		{ExternalItemID: "li-2", ProductName: "Gadget", Quantity: 1,
			UnitPrice: decimal.NewFromInt(5), TotalPrice: decimal.NewFromInt(5)},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("DELETE FROM order_items WHERE order_id").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	orderID, err := st.UpsertOrderTx(context.Background(), order, items)
	require.NoError(t, err)
	assert.Equal(t, int64(42), orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertOrderTxRollsBackOnItemFailure(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("DELETE FROM order_items WHERE order_id").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	_, err := st.UpsertOrderTx(context.Background(), &models.Order{ExternalOrderID: "ext-1"},
		[]models.OrderItem{{ExternalItemID: "li-1"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByIDNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM orders WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := st.GetOrderByID(context.Background(), 7)
	assert.True(t, errors.Is(err, models.ErrOrderNotFound))
}

func TestSetOrderStatusWithHistory(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_status FROM orders WHERE id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"order_status"}).AddRow("assigned"))
	mock.ExpectExec("UPDATE orders SET order_status").
		WithArgs("shipped", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_status_history").
		WithArgs(int64(42), int64(9), "assigned", "shipped", "all vendors shipped").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := st.SetOrderStatusWithHistory(context.Background(), 42, 9, "shipped", "all vendors shipped")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOrderStatusWithHistoryNoOpOnSameStatus(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_status FROM orders WHERE id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"order_status"}).AddRow("shipped"))
	mock.ExpectRollback()

	err := st.SetOrderStatusWithHistory(context.Background(), 42, 9, "shipped", "noop")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionAssignmentTxGuardsOnExpectedStatus(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE vendor_assignments SET status").
		WithArgs("accepted", int64(5), "assigned").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow(42))
	mock.ExpectExec("INSERT INTO order_status_history").
		WithArgs(int64(42), int64(5), int64(9), "assigned", "accepted", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := st.TransitionAssignmentTx(context.Background(), 5, "assigned", "accepted", 9, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionAssignmentTxLosesToConcurrentWriter(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE vendor_assignments SET status").
		WithArgs("accepted", int64(5), "assigned").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))
	mock.ExpectRollback()

	err := st.TransitionAssignmentTx(context.Background(), 5, "assigned", "accepted", 9, "")
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

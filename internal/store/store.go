package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fulfillment-hub/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing connection (used by tests)
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetActiveStore retrieves an active store connection by ID
func (s *Store) GetActiveStore(ctx context.Context, id int64) (*models.StoreConn, error) {
	var sc models.StoreConn
	err := s.db.GetContext(ctx, &sc, "SELECT * FROM stores WHERE id = $1 AND is_active = true", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store %d: %w", id, models.ErrStoreNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// GetStoreByID retrieves a store connection by ID regardless of flags
func (s *Store) GetStoreByID(ctx context.Context, id int64) (*models.StoreConn, error) {
	var sc models.StoreConn
	err := s.db.GetContext(ctx, &sc, "SELECT * FROM stores WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store %d: %w", id, models.ErrStoreNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListStores retrieves all configured stores
func (s *Store) ListStores(ctx context.Context) ([]models.StoreConn, error) {
	var stores []models.StoreConn
	err := s.db.SelectContext(ctx, &stores, "SELECT * FROM stores ORDER BY created_at DESC")
	return stores, err
}

// ListSyncEnabledStores retrieves stores eligible for a sync run
func (s *Store) ListSyncEnabledStores(ctx context.Context) ([]models.StoreConn, error) {
	var stores []models.StoreConn
	err := s.db.SelectContext(ctx, &stores,
		"SELECT * FROM stores WHERE is_active = true AND sync_enabled = true ORDER BY id")
	return stores, err
}

// AdvanceWatermark moves the store's last-sync watermark forward
func (s *Store) AdvanceWatermark(ctx context.Context, storeID int64, to time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE stores SET last_sync_at = $1, updated_at = NOW() WHERE id = $2",
		to, storeID)
	return err
}

// GetVendorByID retrieves a vendor by ID
func (s *Store) GetVendorByID(ctx context.Context, id int64) (*models.Vendor, error) {
	var v models.Vendor
	err := s.db.GetContext(ctx, &v, "SELECT * FROM vendors WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vendor %d: %w", id, models.ErrVendorNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateNotification queues a notification record for external delivery
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, title, message, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, n, query, n.UserID, n.Type, n.Title, n.Message, n.Data)
}

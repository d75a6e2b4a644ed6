package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fulfillment-hub/internal/models"
)

// CreateTracking persists a tracking record with shipped_date set to now
func (s *Store) CreateTracking(ctx context.Context, t *models.TrackingRecord) error {
	query := `
		INSERT INTO order_tracking (
			order_id, vendor_assignment_id, tracking_number, carrier,
			tracking_url, shipped_date, status, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, NOW(), $6, $7, $8)
		RETURNING id, shipped_date, created_at`

	return s.db.GetContext(ctx, t, query,
		t.OrderID, t.VendorAssignmentID, t.TrackingNumber, t.Carrier,
		t.TrackingURL, t.Status, t.Notes, t.CreatedBy)
}

// GetTrackingByID retrieves a tracking record by ID
func (s *Store) GetTrackingByID(ctx context.Context, id int64) (*models.TrackingRecord, error) {
	var t models.TrackingRecord
	err := s.db.GetContext(ctx, &t, "SELECT * FROM order_tracking WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tracking %d: %w", id, models.ErrTrackingNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTrackingByOrderID retrieves all tracking records for an order
func (s *Store) GetTrackingByOrderID(ctx context.Context, orderID int64) ([]models.TrackingRecord, error) {
	var tracking []models.TrackingRecord
	err := s.db.SelectContext(ctx, &tracking,
		"SELECT * FROM order_tracking WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	return tracking, err
}

// UpdateTracking updates a tracking record's status and delivery details
func (s *Store) UpdateTracking(ctx context.Context, id int64, status string, deliveredDate *time.Time, notes string) (*models.TrackingRecord, error) {
	var t models.TrackingRecord
	err := s.db.GetContext(ctx, &t, `
		UPDATE order_tracking
		SET status = $1, delivered_date = $2, notes = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING *`,
		status, deliveredDate, notes, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tracking %d: %w", id, models.ErrTrackingNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fulfillment-hub/config"
	"fulfillment-hub/internal/broker"
	"fulfillment-hub/internal/models"
	"fulfillment-hub/internal/platform"
	"fulfillment-hub/internal/redisclient"
	"fulfillment-hub/internal/store"
	"fulfillment-hub/internal/util"
)

// ErrSyncInProgress is returned when another sync run holds the store lock.
var ErrSyncInProgress = errors.New("sync already in progress for this store")

// AdapterResolver yields the platform adapter for a store connection.
// *platform.Registry satisfies it.
type AdapterResolver interface {
	ForStore(store *models.StoreConn) (platform.Adapter, error)
}

// OrderSyncError records a single order that failed to persist during a run.
type OrderSyncError struct {
	ExternalOrderID string `json:"external_order_id"`
	Error           string `json:"error"`
}

// SyncResult summarizes one sync run for one store.
type SyncResult struct {
	StoreID      int64            `json:"store_id"`
	StoreName    string           `json:"store_name"`
	TotalFetched int              `json:"total_fetched"`
	SyncedCount  int              `json:"synced_count"`
	Errors       []OrderSyncError `json:"errors,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// SyncService pulls orders from upstream platforms and persists them locally.
type SyncService struct {
	store     *store.Store
	adapters  AdapterResolver
	redis     *redisclient.Client
	publisher *broker.EventPublisher
	logger    *zap.Logger
	cfg       config.SyncConfig
}

// NewSyncService creates a new SyncService
func NewSyncService(st *store.Store, adapters AdapterResolver, redis *redisclient.Client, publisher *broker.EventPublisher, cfg config.SyncConfig) *SyncService {
	return &SyncService{
		store:     st,
		adapters:  adapters,
		redis:     redis,
		publisher: publisher,
		logger:    util.GetLogger(),
		cfg:       cfg,
	}
}

// SyncStore runs a full sync cycle for one store: fetch orders updated since
// the store's watermark, upsert each one, then advance the watermark. A
// failure on one order is recorded and does not abort the rest of the run.
func (s *SyncService) SyncStore(ctx context.Context, storeID int64) (*SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.SyncStore")
	defer span.End()

	start := time.Now()

	conn, err := s.store.GetActiveStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		acquired, lockErr := s.redis.AcquireSyncLock(ctx, storeID, s.cfg.LockTTL)
		if lockErr != nil {
			s.logger.Warn("sync lock unavailable, proceeding without it",
				zap.Int64("store_id", storeID), zap.Error(lockErr))
		} else if !acquired {
			util.SyncRunsTotal.WithLabelValues("locked").Inc()
			return nil, ErrSyncInProgress
		} else {
			defer func() {
				if relErr := s.redis.ReleaseSyncLock(context.Background(), storeID); relErr != nil {
					s.logger.Warn("failed to release sync lock",
						zap.Int64("store_id", storeID), zap.Error(relErr))
				}
			}()
		}
	}

	adapter, err := s.adapters.ForStore(conn)
	if err != nil {
		util.SyncRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to resolve adapter for store %d: %w", storeID, err)
	}

	s.logger.Info("starting order sync",
		zap.Int64("store_id", storeID),
		zap.String("store_name", conn.Name),
		zap.String("platform", string(conn.Type)))

	orders, err := s.fetchWithRetry(ctx, adapter, conn.LastSyncAt)
	if err != nil {
		util.SyncRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to fetch orders from %s: %w", conn.Type, err)
	}

	result := &SyncResult{
		StoreID:      storeID,
		StoreName:    conn.Name,
		TotalFetched: len(orders),
	}

	for i := range orders {
		orderID, perr := s.persistOrder(ctx, conn, &orders[i])
		if perr != nil {
			util.OrderSyncErrorsTotal.Inc()
			s.logger.Error("failed to persist order",
				zap.Int64("store_id", storeID),
				zap.String("external_order_id", orders[i].ExternalOrderID),
				zap.Error(perr))
			result.Errors = append(result.Errors, OrderSyncError{
				ExternalOrderID: orders[i].ExternalOrderID,
				Error:           perr.Error(),
			})
			continue
		}
		result.SyncedCount++
		util.OrdersSyncedTotal.Inc()

		if s.publisher != nil {
			event := &models.OrderSyncedEvent{
				BaseEvent:       models.NewBaseEvent(models.EventTypeOrderSynced),
				StoreID:         storeID,
				OrderID:         orderID,
				ExternalOrderID: orders[i].ExternalOrderID,
			}
			if pubErr := s.publisher.PublishOrderSynced(ctx, event); pubErr != nil {
				s.logger.Warn("failed to publish order synced event",
					zap.Int64("order_id", orderID), zap.Error(pubErr))
			}
		}
	}

	// The watermark advances even when individual orders failed: a failed
	// order keeps its upstream update time, so the next run with an
	// unchanged record filter would miss it, but a stuck watermark would
	// re-fetch the entire backlog forever.
	if err := s.store.AdvanceWatermark(ctx, storeID, time.Now().UTC()); err != nil {
		util.SyncRunsTotal.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("failed to advance sync watermark for store %d: %w", storeID, err)
	}

	util.SyncRunsTotal.WithLabelValues("success").Inc()
	util.SyncDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("order sync completed",
		zap.Int64("store_id", storeID),
		zap.Int("total_fetched", result.TotalFetched),
		zap.Int("synced", result.SyncedCount),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// SyncAllStores runs SyncStore for every sync-enabled store. A failing store
// is recorded in its result and does not stop the remaining stores.
func (s *SyncService) SyncAllStores(ctx context.Context) ([]SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.SyncAllStores")
	defer span.End()

	stores, err := s.store.ListSyncEnabledStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync-enabled stores: %w", err)
	}

	results := make([]SyncResult, 0, len(stores))
	for _, conn := range stores {
		res, serr := s.SyncStore(ctx, conn.ID)
		if serr != nil {
			if errors.Is(serr, ErrSyncInProgress) {
				s.logger.Info("skipping store, sync already running", zap.Int64("store_id", conn.ID))
				continue
			}
			s.logger.Error("store sync failed",
				zap.Int64("store_id", conn.ID),
				zap.String("store_name", conn.Name),
				zap.Error(serr))
			results = append(results, SyncResult{StoreID: conn.ID, StoreName: conn.Name, Error: serr.Error()})
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// RefreshOrder re-fetches a single order from its platform and upserts it,
// bypassing the watermark. Useful when one order failed during a bulk run.
func (s *SyncService) RefreshOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.RefreshOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	conn, err := s.store.GetStoreByID(ctx, order.StoreID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.ForStore(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve adapter for store %d: %w", conn.ID, err)
	}

	canonical, err := adapter.FetchOrderDetail(ctx, order.ExternalOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %s from %s: %w", order.ExternalOrderID, conn.Type, err)
	}
	if _, err := s.persistOrder(ctx, conn, canonical); err != nil {
		return nil, err
	}
	util.OrdersSyncedTotal.Inc()

	return s.store.GetOrderByID(ctx, orderID)
}

// RequestSync enqueues an on-demand sync for one store on the event topic.
// The sync worker picks it up; duplicates are shed by event ID.
func (s *SyncService) RequestSync(ctx context.Context, storeID int64) error {
	if _, err := s.store.GetActiveStore(ctx, storeID); err != nil {
		return err
	}
	if s.publisher == nil {
		return errors.New("event publisher not configured")
	}
	event := &models.SyncRequestedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeSyncRequested),
		StoreID:   storeID,
	}
	return s.publisher.PublishSyncRequested(ctx, event)
}

// ListStores returns every configured store connection.
func (s *SyncService) ListStores(ctx context.Context) ([]models.StoreConn, error) {
	return s.store.ListStores(ctx)
}

// GetOrder returns one synced order with its items.
func (s *SyncService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// GetOrderHistory returns the order's status audit trail.
func (s *SyncService) GetOrderHistory(ctx context.Context, orderID int64) ([]models.StatusHistory, error) {
	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.GetStatusHistory(ctx, orderID)
}

// fetchWithRetry retries transient upstream failures with a fixed backoff.
// Auth and scope errors are permanent and returned immediately.
func (s *SyncService) fetchWithRetry(ctx context.Context, adapter platform.Adapter, since *time.Time) ([]platform.CanonicalOrder, error) {
	var lastErr error
	attempts := s.cfg.FetchRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			util.FetchRetriesTotal.WithLabelValues(retryReason(lastErr)).Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.FetchBackoff):
			}
		}
		orders, err := adapter.FetchOrders(ctx, since, s.cfg.PageSize)
		if err == nil {
			return orders, nil
		}
		if !platform.Retryable(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("transient fetch failure, will retry",
			zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, lastErr
}

func retryReason(err error) string {
	if errors.Is(err, platform.ErrRateLimited) {
		return "rate_limited"
	}
	return "transient"
}

// persistOrder maps a canonical upstream order onto local rows and upserts it.
func (s *SyncService) persistOrder(ctx context.Context, conn *models.StoreConn, co *platform.CanonicalOrder) (int64, error) {
	order := &models.Order{
		StoreID:           conn.ID,
		ExternalOrderID:   co.ExternalOrderID,
		OrderNumber:       co.OrderNumber,
		CustomerEmail:     co.CustomerEmail,
		CustomerName:      co.CustomerName,
		CustomerPhone:     co.CustomerPhone,
		BillingAddress:    co.BillingAddress,
		ShippingAddress:   co.ShippingAddress,
		TotalAmount:       co.TotalAmount,
		Currency:          co.Currency,
		OrderStatus:       co.OrderStatus,
		FulfillmentStatus: co.FulfillmentStatus,
		PaymentStatus:     co.PaymentStatus,
		Notes:             co.Notes,
		Tags:              co.Tags,
		OrderDate:         co.OrderDate,
	}
	items := make([]models.OrderItem, 0, len(co.Items))
	for _, ci := range co.Items {
		items = append(items, models.OrderItem{
			ExternalItemID: ci.ExternalItemID,
			ProductName:    ci.ProductName,
			SKU:            ci.SKU,
			Quantity:       ci.Quantity,
			UnitPrice:      ci.UnitPrice,
			TotalPrice:     ci.TotalPrice,
			VariantTitle:   ci.VariantTitle,
			ProductData:    ci.ProductData,
		})
	}
	return s.store.UpsertOrderTx(ctx, order, items)
}

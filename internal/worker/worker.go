package worker

import (
	"context"
	"log"
	"time"

	"fulfillment-hub/internal/broker"
	"fulfillment-hub/internal/models"
	"fulfillment-hub/internal/redisclient"
	"fulfillment-hub/internal/service"
)

// eventDedupeTTL bounds how long a consumed event ID is remembered.
const eventDedupeTTL = 24 * time.Hour

// SyncWorker runs periodic store syncs and serves on-demand sync requests
// arriving on the event topic.
type SyncWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	syncService  *service.SyncService
	redis        *redisclient.Client
	interval     time.Duration
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	consumer *broker.Consumer,
	syncService *service.SyncService,
	redis *redisclient.Client,
	interval time.Duration,
) *SyncWorker {
	w := &SyncWorker{
		consumer:    consumer,
		syncService: syncService,
		redis:       redis,
		interval:    interval,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnSyncRequested(w.handleSyncRequested)
	w.eventHandler = eventHandler

	return w
}

// Start runs the periodic sync loop and the event consumer until ctx is done
func (w *SyncWorker) Start(ctx context.Context) error {
	log.Println("Starting sync worker...")

	go w.runPeriodic(ctx)

	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SyncWorker) Stop() error {
	log.Println("Stopping sync worker...")
	return w.consumer.Close()
}

// runPeriodic syncs every sync-enabled store on a fixed interval.
func (w *SyncWorker) runPeriodic(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := w.syncService.SyncAllStores(ctx)
			if err != nil {
				log.Printf("Periodic sync failed: %v", err)
				continue
			}
			log.Printf("Periodic sync completed for %d stores", len(results))
		}
	}
}

// handleSyncRequested serves an on-demand sync for one store. Consumption is
// at-least-once, so replayed events are dropped through the redis dedupe key.
func (w *SyncWorker) handleSyncRequested(ctx context.Context, event *models.SyncRequestedEvent) error {
	if w.redis != nil {
		fresh, err := w.redis.MarkEventSeen(ctx, event.EventID, eventDedupeTTL)
		if err != nil {
			log.Printf("Event dedupe check failed for %s: %v", event.EventID, err)
		} else if !fresh {
			log.Printf("Skipping duplicate sync request event: %s", event.EventID)
			return nil
		}
	}

	log.Printf("Processing sync request for store: %d", event.StoreID)

	result, err := w.syncService.SyncStore(ctx, event.StoreID)
	if err != nil {
		log.Printf("Requested sync failed for store %d: %v", event.StoreID, err)
		// Swallow the error so the consumer does not retry a run the sync
		// lock or a permanent credential failure will reject again.
		return nil
	}

	log.Printf("Requested sync completed for store %d: %d/%d orders",
		event.StoreID, result.SyncedCount, result.TotalFetched)
	return nil
}

package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Total number of store sync runs",
	}, []string{"result"})

	OrdersSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_synced_total",
		Help: "Total number of orders upserted from platforms",
	})

	OrderSyncErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_sync_errors_total",
		Help: "Total number of per-order persistence failures during sync",
	})

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_duration_seconds",
		Help:    "Duration of one store sync run",
		Buckets: prometheus.DefBuckets,
	})

	FetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_fetch_retries_total",
		Help: "Total number of backed-off platform fetch retries",
	}, []string{"reason"})

	AssignmentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignments_created_total",
		Help: "Total number of vendor assignments created",
	}, []string{"type"})

	AssignmentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignments_rejected_total",
		Help: "Total number of rejected assignment requests",
	}, []string{"reason"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_transitions_total",
		Help: "Total number of assignment status transitions",
	}, []string{"to"})

	TransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_transitions_rejected_total",
		Help: "Total number of rejected status transitions",
	}, []string{"reason"})

	TrackingPushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_push_total",
		Help: "Total number of upstream tracking pushes",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

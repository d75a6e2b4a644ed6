package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"fulfillment-hub/internal/models"
	"fulfillment-hub/internal/platform"
	"fulfillment-hub/internal/service"
	"fulfillment-hub/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	syncService       *service.SyncService
	assignmentService *service.AssignmentService
	fulfillment       *service.FulfillmentService
	trackingService   *service.TrackingService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	syncService *service.SyncService,
	assignmentService *service.AssignmentService,
	fulfillment *service.FulfillmentService,
	trackingService *service.TrackingService,
) *Handler {
	return &Handler{
		syncService:       syncService,
		assignmentService: assignmentService,
		fulfillment:       fulfillment,
		trackingService:   trackingService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stores", h.listStores)
		v1.POST("/stores/:id/sync", h.syncStore)
		v1.POST("/sync", h.syncAllStores)

		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/refresh", h.refreshOrder)
		v1.GET("/orders/:id/history", h.getOrderHistory)
		v1.POST("/orders/:id/assign", h.assignOrder)
		v1.POST("/orders/:id/split", h.splitOrder)
		v1.POST("/orders/:id/split-preview", h.previewSplit)
		v1.GET("/orders/:id/splits", h.getOrderSplits)

		v1.PUT("/assignments/:id/status", h.transitionAssignment)

		v1.POST("/tracking", h.recordTracking)
		v1.GET("/tracking/order/:id", h.getOrderTracking)
		v1.PUT("/tracking/:id", h.updateTracking)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listStores lists all configured storefront connections
func (h *Handler) listStores(c *gin.Context) {
	stores, err := h.syncService.ListStores(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

// syncStore triggers a sync run for one store. With ?async=true the run is
// enqueued on the event topic instead of executing inline.
func (h *Handler) syncStore(c *gin.Context) {
	storeID, ok := pathID(c)
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		if err := h.syncService.RequestSync(c.Request.Context(), storeID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"store_id": storeID, "status": "sync requested"})
		return
	}

	result, err := h.syncService.SyncStore(c.Request.Context(), storeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// syncAllStores triggers a sync run across every sync-enabled store
func (h *Handler) syncAllStores(c *gin.Context) {
	results, err := h.syncService.SyncAllStores(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// getOrder returns one order with its items
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, items, err := h.syncService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

// refreshOrder re-fetches one order from its platform, bypassing the watermark
func (h *Handler) refreshOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.syncService.RefreshOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// getOrderHistory returns the order's status audit trail
func (h *Handler) getOrderHistory(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	history, err := h.syncService.GetOrderHistory(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// assignOrder assigns a whole order to one vendor
func (h *Handler) assignOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorFromRequest(c)
	if !ok {
		return
	}

	var req service.AssignFullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	assignment, err := h.assignmentService.AssignFull(c.Request.Context(), orderID, actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

// splitOrder commits a split of an order's items across vendors
func (h *Handler) splitOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorFromRequest(c)
	if !ok {
		return
	}

	var req service.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.assignmentService.SplitAssign(c.Request.Context(), orderID, actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// previewSplit computes a split's amounts without committing it
func (h *Handler) previewSplit(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req service.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	preview, err := h.assignmentService.PreviewSplit(c.Request.Context(), orderID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// getOrderSplits lists an order's assignments with item breakdowns
func (h *Handler) getOrderSplits(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	splits, err := h.assignmentService.GetOrderSplits(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"splits": splits})
}

// transitionAssignment moves an assignment through its status state machine
func (h *Handler) transitionAssignment(c *gin.Context) {
	assignmentID, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorFromRequest(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	assignment, err := h.fulfillment.Transition(c.Request.Context(), assignmentID, actor, req.Status, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

// recordTracking adds shipment tracking to an assignment
func (h *Handler) recordTracking(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		return
	}

	var req service.RecordTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	record, err := h.trackingService.RecordTracking(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// getOrderTracking lists tracking records for an order
func (h *Handler) getOrderTracking(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	records, err := h.trackingService.GetOrderTracking(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracking": records})
}

// updateTracking updates a tracking record's status
func (h *Handler) updateTracking(c *gin.Context) {
	trackingID, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorFromRequest(c)
	if !ok {
		return
	}

	var req service.UpdateTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	record, err := h.trackingService.UpdateTracking(c.Request.Context(), actor, trackingID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// pathID parses the :id path parameter, responding 400 on garbage
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// actorFromRequest reads the gateway-authenticated identity headers
func actorFromRequest(c *gin.Context) (service.Actor, bool) {
	userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid X-User-ID header"})
		return service.Actor{}, false
	}
	role := c.GetHeader("X-User-Role")
	if role == "" {
		role = service.RoleVendor
	}
	return service.Actor{UserID: userID, Role: role}, true
}

// respondError maps domain errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrStoreNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrVendorNotFound),
		errors.Is(err, models.ErrAssignmentNotFound),
		errors.Is(err, models.ErrTrackingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, service.ErrSyncInProgress):
		status = http.StatusConflict
	case errors.Is(err, models.ErrOverAllocation),
		errors.Is(err, models.ErrItemNotInOrder),
		errors.Is(err, models.ErrVendorNotApproved):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, platform.ErrAuth),
		errors.Is(err, platform.ErrUnsupportedScope),
		platform.Retryable(err):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

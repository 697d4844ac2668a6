package performance

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/fleet-performance/pkg/common"
)

const driverIDParam = "driver_id"

// ReportService is what the handler needs from the performance service
type ReportService interface {
	GetReport(ctx context.Context, driverID string, q PerformanceQuery) (*ReportResult, error)
	GetTimeline(ctx context.Context, driverID string, q PerformanceQuery) (*TimelineView, error)
	GetEvents(ctx context.Context, driverID string, q EventsQuery) (*EventsView, error)
	LocateEvent(ctx context.Context, driverID string, q LocateQuery) (*LocatedEvent, error)
	GetKPIs(ctx context.Context, driverID string, q PerformanceQuery) (*KPIView, error)
	GetHourly(ctx context.Context, driverID string, q PerformanceQuery) (*HourlyView, error)
	Invalidate(ctx context.Context, driverID string) (*InvalidationResult, error)
}

// Handler handles HTTP requests for driver performance reports
type Handler struct {
	service ReportService
}

// NewHandler creates a new performance handler
func NewHandler(service ReportService) *Handler {
	return &Handler{service: service}
}

// GetReport returns the full report bundle
// GET /api/v1/performance/drivers/:driver_id/report?period=this_week&tz=Europe/Tallinn
func (h *Handler) GetReport(c *gin.Context) {
	driverID, q, ok := h.bindRange(c)
	if !ok {
		return
	}

	res, err := h.service.GetReport(c.Request.Context(), driverID, q)
	if common.HandleServiceError(c, err, "failed to build performance report") {
		return
	}

	respond(c, res.Report, res.Meta, 0)
}

// GetTimeline returns the per-day segment timeline
// GET /api/v1/performance/drivers/:driver_id/timeline?from=2024-03-04&to=2024-03-10
func (h *Handler) GetTimeline(c *gin.Context) {
	driverID, q, ok := h.bindRange(c)
	if !ok {
		return
	}

	view, err := h.service.GetTimeline(c.Request.Context(), driverID, q)
	if common.HandleServiceError(c, err, "failed to build timeline") {
		return
	}

	respond(c, view, view.Meta, len(view.Days))
}

// GetEvents returns activity events, optionally for a single day
// GET /api/v1/performance/drivers/:driver_id/events?period=this_week&date=2024-03-05
func (h *Handler) GetEvents(c *gin.Context) {
	driverID, ok := common.ParseDriverIDParam(c, driverIDParam)
	if !ok {
		return
	}
	var q EventsQuery
	if !common.BindQuery(c, &q) {
		return
	}

	view, err := h.service.GetEvents(c.Request.Context(), driverID, q)
	if common.HandleServiceError(c, err, "failed to build activity events") {
		return
	}

	respond(c, view, view.Meta, len(view.Events))
}

// LocateEvent returns the event to focus for a timestamp
// GET /api/v1/performance/drivers/:driver_id/events/locate?date=2024-03-05&ts=1709629200
func (h *Handler) LocateEvent(c *gin.Context) {
	driverID, ok := common.ParseDriverIDParam(c, driverIDParam)
	if !ok {
		return
	}
	var q LocateQuery
	if !common.BindQuery(c, &q) {
		return
	}

	located, err := h.service.LocateEvent(c.Request.Context(), driverID, q)
	if common.HandleServiceError(c, err, "failed to locate activity event") {
		return
	}

	respond(c, located, located.Meta, 0)
}

// GetKPIs returns range and daily KPIs
// GET /api/v1/performance/drivers/:driver_id/kpis?period=last_7_days
func (h *Handler) GetKPIs(c *gin.Context) {
	driverID, q, ok := h.bindRange(c)
	if !ok {
		return
	}

	view, err := h.service.GetKPIs(c.Request.Context(), driverID, q)
	if common.HandleServiceError(c, err, "failed to build KPIs") {
		return
	}

	respond(c, view, view.Meta, len(view.Daily))
}

// GetHourly returns the hourly overview
// GET /api/v1/performance/drivers/:driver_id/hourly?period=yesterday
func (h *Handler) GetHourly(c *gin.Context) {
	driverID, q, ok := h.bindRange(c)
	if !ok {
		return
	}

	view, err := h.service.GetHourly(c.Request.Context(), driverID, q)
	if common.HandleServiceError(c, err, "failed to build hourly overview") {
		return
	}

	respond(c, view, view.Meta, len(view.Days))
}

// Invalidate drops the driver's cached reports
// POST /api/v1/performance/drivers/:driver_id/invalidate
func (h *Handler) Invalidate(c *gin.Context) {
	driverID, ok := common.ParseDriverIDParam(c, driverIDParam)
	if !ok {
		return
	}

	res, err := h.service.Invalidate(c.Request.Context(), driverID)
	if common.HandleServiceError(c, err, "failed to invalidate reports") {
		return
	}

	common.AcceptedResponse(c, res)
}

func (h *Handler) bindRange(c *gin.Context) (string, PerformanceQuery, bool) {
	var q PerformanceQuery
	driverID, ok := common.ParseDriverIDParam(c, driverIDParam)
	if !ok {
		return "", q, false
	}
	if !common.BindQuery(c, &q) {
		return "", q, false
	}
	return driverID, q, true
}

func respond(c *gin.Context, data interface{}, meta ResultMeta, total int) {
	if meta.Cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}

	common.SuccessResponseWithMeta(c, data, &common.Meta{
		DriverID:  meta.DriverID,
		From:      meta.From.Format(time.RFC3339),
		To:        meta.To.Format(time.RFC3339),
		Timezone:  meta.Timezone,
		Total:     total,
		Cached:    meta.Cached,
		ComputeMS: meta.ComputeMS,
	})
}

// RegisterRoutes registers performance routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	drivers := r.Group("/api/v1/performance/drivers/:driver_id")
	{
		drivers.GET("/report", h.GetReport)
		drivers.GET("/timeline", h.GetTimeline)
		drivers.GET("/events", h.GetEvents)
		drivers.GET("/events/locate", h.LocateEvent)
		drivers.GET("/kpis", h.GetKPIs)
		drivers.GET("/hourly", h.GetHourly)
		drivers.POST("/invalidate", h.Invalidate)
	}
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noor-academy/tutoring-api/internal/middleware"
	"github.com/noor-academy/tutoring-api/internal/models"
	"github.com/noor-academy/tutoring-api/internal/service"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
	"github.com/noor-academy/tutoring-api/pkg/response"
)

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	metrics   *service.MetricsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, metrics *service.MetricsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, metrics: metrics}
}

// Performance godoc
// @Summary Teacher performance analytics for a reporting period
// @Tags Analytics
// @Produce json
// @Param period query string false "week, month or semester" default(week)
// @Success 200 {object} response.Envelope
// @Router /analytics/performance [get]
func (h *AnalyticsHandler) Performance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	period := models.ReportingPeriod(c.DefaultQuery("period", string(models.PeriodWeek)))

	start := time.Now()
	analytics, cacheHit, err := h.analytics.Performance(c.Request.Context(), claims.TeacherID, period)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, analytics, nil, meta)
}

// System godoc
// @Summary Instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.metrics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

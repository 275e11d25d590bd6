package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/evaldesk/appraisal-api/internal/repository"
	"github.com/evaldesk/appraisal-api/internal/service"
	"github.com/evaldesk/appraisal-api/pkg/response"
)

// MetricsHandler exposes operational endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	db      *sqlx.DB
	cache   *repository.CacheRepository
}

// NewMetricsHandler creates a new metrics handler. The cache repository may
// be nil when Redis is not configured.
func NewMetricsHandler(metrics *service.MetricsService, db *sqlx.DB, cache *repository.CacheRepository) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, db: db, cache: cache}
}

// Prometheus serves the Prometheus scrape endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Summary godoc
// @Summary Metrics summary
// @Description Aggregated request and evaluation counters for dashboards.
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope{data=models.SystemMetrics}
// @Security BearerAuth
// @Router /metrics/summary [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// Health godoc
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @Summary Readiness check
// @Description Verifies the database and, when configured, the cache.
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (h *MetricsHandler) Ready(c *gin.Context) {
	checks := gin.H{"database": "ok"}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	if h.cache != nil {
		checks["cache"] = "ok"
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			checks["cache"] = "unavailable"
		}
	}

	c.JSON(status, checks)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaldesk/appraisal-api/internal/service"
)

func metricsRouter(metrics *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics(metrics))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/health", ok)
	router.GET("/ready", ok)
	router.GET("/metrics", ok)
	router.GET("/api/v1/users", ok)
	return router
}

func TestMetricsObservesAPIRequests(t *testing.T) {
	metrics := service.NewMetricsService()
	router := metricsRouter(metrics)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	assert.Equal(t, uint64(1), metrics.Snapshot().RequestsTotal)
}

func TestMetricsSkipsProbeEndpoints(t *testing.T) {
	metrics := service.NewMetricsService()
	router := metricsRouter(metrics)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, recorder.Code)
	}

	assert.Equal(t, uint64(0), metrics.Snapshot().RequestsTotal)
}

func TestMetricsNilServicePassesThrough(t *testing.T) {
	router := metricsRouter(nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
}

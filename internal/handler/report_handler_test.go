package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestReportHandlerGenerateRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(nil)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports?type=overview&start_date=20-01-2026", nil)

	handler.Generate(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestReportHandlerDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(nil)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports/download", nil)

	handler.Download(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestParseDateQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports?start_date=2026-01-31", nil)

	parsed, err := parseDateQuery(c, "start_date")
	require.NoError(t, err)
	require.NotNil(t, parsed)
	require.Equal(t, "2026-01-31", parsed.Format("2006-01-02"))

	missing, err := parseDateQuery(c, "end_date")
	require.NoError(t, err)
	require.Nil(t, missing)
}

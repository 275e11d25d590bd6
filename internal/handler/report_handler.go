package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/service"
	appErrors "github.com/evaldesk/appraisal-api/pkg/errors"
	"github.com/evaldesk/appraisal-api/pkg/response"
)

// ReportHandler exposes aggregate reporting and export endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Generate godoc
// @Summary Generate a report
// @Description Build an aggregate report of the requested type, optionally
// @Description limited to an evaluation period.
// @Tags Reports
// @Produce json
// @Param type query string true "Report type" Enums(overview, users, departments, performance)
// @Param start_date query string false "Period start (YYYY-MM-DD)"
// @Param end_date query string false "Period end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports [get]
func (h *ReportHandler) Generate(c *gin.Context) {
	reportType := models.ReportType(c.Query("type"))
	start, err := parseDateQuery(c, "start_date")
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := parseDateQuery(c, "end_date")
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.service.Generate(c.Request.Context(), reportType, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CreateJob godoc
// @Summary Queue a report export
// @Description Queue an asynchronous export of a report to PDF or CSV and
// @Description return the job handle for polling.
// @Tags Reports
// @Accept json
// @Produce json
// @Param request body models.CreateReportRequest true "Export parameters"
// @Success 201 {object} response.Envelope{data=models.ReportJob}
// @Security BearerAuth
// @Router /reports/pdf [post]
func (h *ReportHandler) CreateJob(c *gin.Context) {
	claims := claimsFromContext(c)

	var req models.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report request"))
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), claims, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, job)
}

// JobStatus godoc
// @Summary Get report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope{data=models.ReportJobStatus}
// @Security BearerAuth
// @Router /reports/jobs/{id} [get]
func (h *ReportHandler) JobStatus(c *gin.Context) {
	claims := claimsFromContext(c)

	status, err := h.service.JobStatus(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// ListJobs godoc
// @Summary List report jobs
// @Description List recent report jobs. Admins see all jobs, other callers
// @Description only their own.
// @Tags Reports
// @Produce json
// @Param limit query int false "Maximum number of jobs" default(20)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/jobs [get]
func (h *ReportHandler) ListJobs(c *gin.Context) {
	claims := claimsFromContext(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobList, err := h.service.ListJobs(c.Request.Context(), claims, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobList, nil)
}

// Download godoc
// @Summary Download an exported report
// @Description Stream a finished export. The signed token in the query string
// @Description is the sole credential for this endpoint.
// @Tags Reports
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download token is required"))
		return
	}

	download, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read report file"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+download.Filename+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, nil)
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, name+" must be formatted as YYYY-MM-DD")
	}
	return &parsed, nil
}

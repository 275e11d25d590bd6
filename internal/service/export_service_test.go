package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/pkg/jobs"
	"github.com/evaldesk/appraisal-api/pkg/storage"
)

func newExportFixture(t *testing.T, repo *mockReportRepo, evals *mockReportEvaluationRepo) (*ExportService, *ReportService) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	exporter := NewExportService(nil, nil, store, signer, "/api/v1", nil)
	if evals == nil {
		evals = &mockReportEvaluationRepo{}
	}
	reports := NewReportService(repo, evals, &mockReportDepartmentRepo{}, &mockReportUserRepo{}, nil, store, signer, ReportServiceConfig{}, nil)
	exporter.SetReports(reports)
	return exporter, reports
}

func TestExportServiceRendersCSV(t *testing.T) {
	repo := newMockReportRepo()
	rows := []models.SubjectRow{
		{EvaluateeID: "u1", EvaluateeName: "Ada Osei", Position: "Engineer", EvaluationType: models.EvaluationTypeSupervisor, AvgScore: 90, EvaluationCount: 1},
	}
	exporter, _ := newExportFixture(t, repo, &mockReportEvaluationRepo{rows: rows})

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypePerformance,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	resultURL, err := exporter.Export(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resultURL, "/api/v1/reports/download?token="), resultURL)
}

func TestExportServiceRendersPDF(t *testing.T) {
	repo := newMockReportRepo()
	repo.usersTotal = 3
	repo.usersActive = 3
	exporter, _ := newExportFixture(t, repo, nil)

	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeOverview,
		Params: models.ReportJobParams{Format: models.ReportFormatPDF},
	}
	_, err := exporter.Export(context.Background(), job)
	require.NoError(t, err)
}

func TestReportWorkerFinishesJob(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeUsers,
		Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	exporter, _ := newExportFixture(t, repo, nil)
	worker := NewReportWorker(repo, exporter, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Payload: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, 10, repo.progress["job-1"])
	assert.NotEmpty(t, repo.finished["job-1"])
}

func TestReportWorkerSkipsMissingJob(t *testing.T) {
	repo := newMockReportRepo()
	exporter, _ := newExportFixture(t, repo, nil)
	worker := NewReportWorker(repo, exporter, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "gone", Payload: "gone"})
	assert.NoError(t, err)
}

func TestReportWorkerOnExhaustedMarksFailed(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeUsers, Status: models.ReportStatusProcessing}
	exporter, _ := newExportFixture(t, repo, nil)
	worker := NewReportWorker(repo, exporter, nil)

	worker.OnExhausted(context.Background(), jobs.Job{ID: "job-1", Payload: "job-1"}, io.ErrUnexpectedEOF)
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), repo.failed["job-1"])
}

func TestResolveDownloadRoundTrip(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeUsers,
		Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	exporter, reports := newExportFixture(t, repo, nil)
	worker := NewReportWorker(repo, exporter, nil)
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Payload: "job-1"}))

	resultURL := repo.finished["job-1"]
	token := resultURL[strings.Index(resultURL, "token=")+len("token="):]

	download, err := reports.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	assert.Equal(t, "users-report.csv", download.Filename)

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.NotEmpty(t, content)
}

func TestResolveDownloadRejectsGarbage(t *testing.T) {
	repo := newMockReportRepo()
	_, reports := newExportFixture(t, repo, nil)

	_, err := reports.ResolveDownload(context.Background(), "bogus")
	require.Error(t, err)
}

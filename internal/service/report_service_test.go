package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaldesk/appraisal-api/internal/models"
	appErrors "github.com/evaldesk/appraisal-api/pkg/errors"
)

type mockReportRepo struct {
	jobs          map[string]*models.ReportJob
	createErr     error
	failed        map[string]string
	progress      map[string]int
	finished      map[string]string
	usersTotal    int
	usersActive   int
	departments   int
	teams         int
	distribution  []models.RoleCount
	recent        []models.User
	unfinished    []models.ReportJob
	unfinishedErr error
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{
		jobs:     make(map[string]*models.ReportJob),
		failed:   make(map[string]string),
		progress: make(map[string]int),
		finished: make(map[string]string),
	}
}

func (m *mockReportRepo) CreateJob(ctx context.Context, job *models.ReportJob) error {
	if m.createErr != nil {
		return m.createErr
	}
	job.ID = "job-generated"
	job.Status = models.ReportStatusQueued
	job.CreatedAt = time.Now()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockReportRepo) FindJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (m *mockReportRepo) ListJobs(ctx context.Context, createdBy string, limit int) ([]models.ReportJob, error) {
	var jobs []models.ReportJob
	for _, job := range m.jobs {
		if job.CreatedBy == createdBy {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

func (m *mockReportRepo) ListUnfinishedJobs(ctx context.Context) ([]models.ReportJob, error) {
	if m.unfinishedErr != nil {
		return nil, m.unfinishedErr
	}
	return m.unfinished, nil
}

func (m *mockReportRepo) UpdateJobProgress(ctx context.Context, id string, status models.ReportStatus, progress int) error {
	m.progress[id] = progress
	if job, ok := m.jobs[id]; ok {
		job.Status = status
		job.Progress = progress
	}
	return nil
}

func (m *mockReportRepo) FinishJob(ctx context.Context, id, resultURL string) error {
	m.finished[id] = resultURL
	if job, ok := m.jobs[id]; ok {
		job.Status = models.ReportStatusFinished
		job.Progress = 100
		job.ResultURL = &resultURL
	}
	return nil
}

func (m *mockReportRepo) FailJob(ctx context.Context, id, message string) error {
	m.failed[id] = message
	if job, ok := m.jobs[id]; ok {
		job.Status = models.ReportStatusFailed
		job.ErrorMessage = &message
	}
	return nil
}

func (m *mockReportRepo) UserCounts(ctx context.Context) (int, int, error) {
	return m.usersTotal, m.usersActive, nil
}

func (m *mockReportRepo) DepartmentCount(ctx context.Context) (int, error) {
	return m.departments, nil
}

func (m *mockReportRepo) TeamCount(ctx context.Context) (int, error) {
	return m.teams, nil
}

func (m *mockReportRepo) RoleDistribution(ctx context.Context) ([]models.RoleCount, error) {
	return m.distribution, nil
}

func (m *mockReportRepo) RecentUsers(ctx context.Context, limit int) ([]models.User, error) {
	return m.recent, nil
}

type mockReportEvaluationRepo struct {
	rows []models.SubjectRow
}

func (m *mockReportEvaluationRepo) SubjectResults(ctx context.Context, start, end *time.Time) ([]models.SubjectRow, error) {
	return m.rows, nil
}

type mockReportDepartmentRepo struct {
	summaries []models.DepartmentSummary
}

func (m *mockReportDepartmentRepo) Summaries(ctx context.Context) ([]models.DepartmentSummary, error) {
	return m.summaries, nil
}

type mockReportUserRepo struct {
	users []models.User
	total int
}

func (m *mockReportUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return m.users, m.total, nil
}

func newReportService(repo *mockReportRepo, evals *mockReportEvaluationRepo) *ReportService {
	if evals == nil {
		evals = &mockReportEvaluationRepo{}
	}
	return NewReportService(repo, evals, &mockReportDepartmentRepo{}, &mockReportUserRepo{}, nil, nil, nil, ReportServiceConfig{}, nil)
}

func TestReportServiceOverview(t *testing.T) {
	repo := newMockReportRepo()
	repo.usersTotal = 10
	repo.usersActive = 8
	repo.departments = 2
	repo.teams = 4
	repo.distribution = []models.RoleCount{{Role: models.RoleEmployee, Count: 9, ActiveCount: 7}}
	svc := newReportService(repo, nil)

	payload, err := svc.Generate(context.Background(), models.ReportTypeOverview, nil, nil)
	require.NoError(t, err)
	report, ok := payload.(*models.OverviewReport)
	require.True(t, ok)
	assert.Equal(t, 10, report.TotalUsers)
	assert.Equal(t, 2, report.InactiveUsers)
	assert.InDelta(t, 80.0, report.ActivityRate, 0.001)
}

func TestReportServiceRejectsUnknownType(t *testing.T) {
	svc := newReportService(newMockReportRepo(), nil)

	_, err := svc.Generate(context.Background(), "payroll", nil, nil)
	assertErrCode(t, err, appErrors.ErrValidation)
}

func TestReportServiceRejectsInvertedPeriod(t *testing.T) {
	svc := newReportService(newMockReportRepo(), nil)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, -1, 0)

	_, err := svc.Generate(context.Background(), models.ReportTypePerformance, &start, &end)
	assertErrCode(t, err, appErrors.ErrValidation)
}

func TestReportServicePerformanceComposite(t *testing.T) {
	rows := []models.SubjectRow{
		{EvaluateeID: "u1", EvaluateeName: "Ada Osei", EvaluationType: models.EvaluationTypeSelf, AvgScore: 80, EvaluationCount: 1},
		{EvaluateeID: "u1", EvaluateeName: "Ada Osei", EvaluationType: models.EvaluationTypePeer, AvgScore: 80, EvaluationCount: 2},
		{EvaluateeID: "u1", EvaluateeName: "Ada Osei", EvaluationType: models.EvaluationTypeSupervisor, AvgScore: 60, EvaluationCount: 1},
		{EvaluateeID: "u2", EvaluateeName: "Kofi Mensah", EvaluationType: models.EvaluationTypeSupervisor, AvgScore: 90, EvaluationCount: 1},
	}
	svc := newReportService(newMockReportRepo(), &mockReportEvaluationRepo{rows: rows})

	payload, err := svc.Generate(context.Background(), models.ReportTypePerformance, nil, nil)
	require.NoError(t, err)
	report, ok := payload.(*models.PerformanceReport)
	require.True(t, ok)
	require.Len(t, report.Subjects, 2)

	// Subjects come back ordered best first: u2 has 0.70*90 = 63 rounded,
	// u1 has 0.70*60 + 0.15*80 + 0.15*80 = 66.
	assert.Equal(t, "u1", report.Subjects[0].EvaluateeID)
	assert.Equal(t, 66, report.Subjects[0].CompositeScore)
	assert.Equal(t, 4, report.Subjects[0].EvaluationCount)
	assert.Equal(t, "u2", report.Subjects[1].EvaluateeID)
	assert.Equal(t, 63, report.Subjects[1].CompositeScore)
}

func TestReportServiceCreateJobWithoutQueue(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(repo, nil)
	admin := evalClaims("admin-1", models.RoleAdmin, nil)

	_, err := svc.CreateJob(context.Background(), admin, &models.CreateReportRequest{Type: models.ReportTypeOverview})
	assertErrCode(t, err, appErrors.ErrUnavailable)
	assert.Equal(t, "report queue unavailable", repo.failed["job-generated"])
}

func TestReportServiceCreateJobRejectsBadFormat(t *testing.T) {
	svc := newReportService(newMockReportRepo(), nil)
	admin := evalClaims("admin-1", models.RoleAdmin, nil)

	_, err := svc.CreateJob(context.Background(), admin, &models.CreateReportRequest{
		Type:   models.ReportTypeUsers,
		Format: "xlsx",
	})
	assertErrCode(t, err, appErrors.ErrValidation)
}

func TestReportServiceJobStatusOwnership(t *testing.T) {
	repo := newMockReportRepo()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeUsers, Status: models.ReportStatusProcessing, Progress: 10, CreatedBy: "u1"}
	svc := newReportService(repo, nil)

	_, err := svc.JobStatus(context.Background(), evalClaims("u2", models.RoleEmployee, nil), "job-1")
	assertErrCode(t, err, appErrors.ErrForbidden)

	status, err := svc.JobStatus(context.Background(), evalClaims("u1", models.RoleEmployee, nil), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, status.Status)

	status, err = svc.JobStatus(context.Background(), evalClaims("admin-1", models.RoleAdmin, nil), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 10, status.Progress)
}

func TestReportServiceJobStatusNotFound(t *testing.T) {
	svc := newReportService(newMockReportRepo(), nil)

	_, err := svc.JobStatus(context.Background(), evalClaims("admin-1", models.RoleAdmin, nil), "missing")
	assertErrCode(t, err, appErrors.ErrNotFound)
}

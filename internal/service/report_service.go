package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/scoring"
	appErrors "github.com/evaldesk/appraisal-api/pkg/errors"
	"github.com/evaldesk/appraisal-api/pkg/jobs"
	"github.com/evaldesk/appraisal-api/pkg/storage"
)

const recentUsersLimit = 5

type reportJobRepository interface {
	CreateJob(ctx context.Context, job *models.ReportJob) error
	FindJob(ctx context.Context, id string) (*models.ReportJob, error)
	ListJobs(ctx context.Context, createdBy string, limit int) ([]models.ReportJob, error)
	ListUnfinishedJobs(ctx context.Context) ([]models.ReportJob, error)
	UpdateJobProgress(ctx context.Context, id string, status models.ReportStatus, progress int) error
	FinishJob(ctx context.Context, id, resultURL string) error
	FailJob(ctx context.Context, id, message string) error
	UserCounts(ctx context.Context) (total, active int, err error)
	DepartmentCount(ctx context.Context) (int, error)
	TeamCount(ctx context.Context) (int, error)
	RoleDistribution(ctx context.Context) ([]models.RoleCount, error)
	RecentUsers(ctx context.Context, limit int) ([]models.User, error)
}

type reportEvaluationRepository interface {
	SubjectResults(ctx context.Context, start, end *time.Time) ([]models.SubjectRow, error)
}

type reportDepartmentRepository interface {
	Summaries(ctx context.Context) ([]models.DepartmentSummary, error)
}

type reportUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// ReportService serves synchronous aggregate reports and manages the
// asynchronous export job lifecycle.
type ReportService struct {
	repo        reportJobRepository
	evaluations reportEvaluationRepository
	departments reportDepartmentRepository
	users       reportUserRepository
	queue       *jobs.Queue
	cache       *CacheService
	storage     *storage.LocalStorage
	signer      *storage.SignedURLSigner
	cacheTTL    time.Duration
	fileTTL     time.Duration
	logger      *zap.Logger
}

// ReportServiceConfig bundles report service tuning.
type ReportServiceConfig struct {
	CacheTTL time.Duration
	FileTTL  time.Duration
}

// NewReportService constructs a report service.
func NewReportService(
	repo reportJobRepository,
	evaluations reportEvaluationRepository,
	departments reportDepartmentRepository,
	users reportUserRepository,
	cache *CacheService,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	cfg ReportServiceConfig,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.FileTTL <= 0 {
		cfg.FileTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:        repo,
		evaluations: evaluations,
		departments: departments,
		users:       users,
		cache:       cache,
		storage:     store,
		signer:      signer,
		cacheTTL:    cfg.CacheTTL,
		fileTTL:     cfg.FileTTL,
		logger:      logger,
	}
}

// SetQueue attaches the worker queue used for asynchronous exports. The
// queue is wired after construction because its handler needs the service.
func (s *ReportService) SetQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Generate returns the aggregate report payload for the requested type.
// Results are cached per type and period.
func (s *ReportService) Generate(ctx context.Context, reportType models.ReportType, start, end *time.Time) (interface{}, error) {
	if !reportType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown report type %q", reportType))
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date")
	}

	cacheKey := reportCacheKey(reportType, start, end)
	switch reportType {
	case models.ReportTypeOverview:
		var cached models.OverviewReport
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
		report, err := s.overviewReport(ctx)
		if err != nil {
			return nil, err
		}
		s.cacheSet(ctx, cacheKey, report)
		return report, nil
	case models.ReportTypeUsers:
		var cached models.UsersReport
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
		report, err := s.usersReport(ctx)
		if err != nil {
			return nil, err
		}
		s.cacheSet(ctx, cacheKey, report)
		return report, nil
	case models.ReportTypeDepartments:
		var cached models.DepartmentsReport
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
		report, err := s.departmentsReport(ctx)
		if err != nil {
			return nil, err
		}
		s.cacheSet(ctx, cacheKey, report)
		return report, nil
	default:
		var cached models.PerformanceReport
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
		report, err := s.performanceReport(ctx, start, end)
		if err != nil {
			return nil, err
		}
		s.cacheSet(ctx, cacheKey, report)
		return report, nil
	}
}

func (s *ReportService) overviewReport(ctx context.Context) (*models.OverviewReport, error) {
	total, active, err := s.repo.UserCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	departments, err := s.repo.DepartmentCount(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count departments")
	}
	teams, err := s.repo.TeamCount(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teams")
	}
	distribution, err := s.repo.RoleDistribution(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load role distribution")
	}
	recent, err := s.repo.RecentUsers(ctx, recentUsersLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent users")
	}

	report := &models.OverviewReport{
		TotalUsers:       total,
		ActiveUsers:      active,
		InactiveUsers:    total - active,
		TotalDepartments: departments,
		TotalTeams:       teams,
		RecentUsers:      recent,
		RoleDistribution: distribution,
	}
	if total > 0 {
		report.ActivityRate = float64(active) / float64(total) * 100
	}
	return report, nil
}

func (s *ReportService) usersReport(ctx context.Context) (*models.UsersReport, error) {
	users, total, err := s.users.List(ctx, models.UserFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	distribution, err := s.repo.RoleDistribution(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load role distribution")
	}
	return &models.UsersReport{Users: users, RoleStats: distribution, TotalUsers: total}, nil
}

func (s *ReportService) departmentsReport(ctx context.Context) (*models.DepartmentsReport, error) {
	summaries, err := s.departments.Summaries(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department summaries")
	}
	return &models.DepartmentsReport{Departments: summaries, Total: len(summaries)}, nil
}

func (s *ReportService) performanceReport(ctx context.Context, start, end *time.Time) (*models.PerformanceReport, error) {
	rows, err := s.evaluations.SubjectResults(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation results")
	}
	return &models.PerformanceReport{
		Subjects:    buildSubjects(rows),
		PeriodStart: start,
		PeriodEnd:   end,
	}, nil
}

// buildSubjects folds per-type average rows into one composite row per
// evaluatee. Subjects are ordered by composite score, best first.
func buildSubjects(rows []models.SubjectRow) []models.SubjectResult {
	type bucket struct {
		result     models.SubjectResult
		selfScore  *float64
		peerScores []float64
		supScores  []float64
	}

	order := make([]string, 0)
	buckets := make(map[string]*bucket)
	for _, row := range rows {
		b, ok := buckets[row.EvaluateeID]
		if !ok {
			b = &bucket{result: models.SubjectResult{
				EvaluateeID:   row.EvaluateeID,
				EvaluateeName: row.EvaluateeName,
				Position:      row.Position,
			}}
			buckets[row.EvaluateeID] = b
			order = append(order, row.EvaluateeID)
		}
		b.result.EvaluationCount += row.EvaluationCount
		switch row.EvaluationType {
		case models.EvaluationTypeSelf:
			score := row.AvgScore
			b.selfScore = &score
			b.result.SelfScore = row.AvgScore
		case models.EvaluationTypePeer:
			b.peerScores = append(b.peerScores, row.AvgScore)
			b.result.PeerScore = row.AvgScore
		case models.EvaluationTypeSupervisor:
			b.supScores = append(b.supScores, row.AvgScore)
			b.result.SupervisorScore = row.AvgScore
		}
	}

	subjects := make([]models.SubjectResult, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		b.result.CompositeScore = scoring.Composite(b.selfScore, b.peerScores, b.supScores)
		subjects = append(subjects, b.result)
	}
	sort.SliceStable(subjects, func(i, j int) bool {
		return subjects[i].CompositeScore > subjects[j].CompositeScore
	})
	return subjects
}

// CreateJob queues an asynchronous export and returns the persisted job.
func (s *ReportService) CreateJob(ctx context.Context, actor *models.JWTClaims, req *models.CreateReportRequest) (*models.ReportJob, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown report type %q", req.Type))
	}
	format := req.Format
	if format == "" {
		format = models.ReportFormatPDF
	}
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date")
	}

	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Format:    format,
		},
		CreatedBy: actor.UserID,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.enqueue(job); err != nil {
		s.logger.Error("failed to enqueue report job", zap.String("job_id", job.ID), zap.Error(err))
		if failErr := s.repo.FailJob(ctx, job.ID, "report queue unavailable"); failErr != nil {
			s.logger.Error("failed to mark report job failed", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "report queue unavailable")
	}

	s.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("created_by", actor.UserID))
	return job, nil
}

func (s *ReportService) enqueue(job *models.ReportJob) error {
	if s.queue == nil {
		return errors.New("report queue not configured")
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    string(job.Type),
		Payload: job.ID,
	})
}

// JobStatus returns the polling payload for a job. Non-admin callers may
// only see their own jobs.
func (s *ReportService) JobStatus(ctx context.Context, actor *models.JWTClaims, jobID string) (*models.ReportJobStatus, error) {
	job, err := s.repo.FindJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if actor == nil || (actor.Role != models.RoleAdmin && job.CreatedBy != actor.UserID) {
		return nil, appErrors.ErrForbidden
	}
	return &models.ReportJobStatus{
		ID:           job.ID,
		Type:         job.Type,
		Status:       job.Status,
		Progress:     job.Progress,
		ResultURL:    job.ResultURL,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		FinishedAt:   job.FinishedAt,
	}, nil
}

// ListJobs returns the caller's most recent export jobs.
func (s *ReportService) ListJobs(ctx context.Context, actor *models.JWTClaims, limit int) ([]models.ReportJob, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	jobList, err := s.repo.ListJobs(ctx, actor.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return jobList, nil
}

// Download is the resolved payload for a signed download token.
type Download struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ResolveDownload validates a signed token and opens the exported file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*Download, error) {
	parsed, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}

	job, err := s.repo.FindJob(ctx, parsed.JobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, "report is not ready for download")
	}

	file, err := s.storage.Open(parsed.Path)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report file no longer available")
	}

	contentType := "application/pdf"
	if job.Params.Format == models.ReportFormatCSV {
		contentType = "text/csv"
	}
	return &Download{
		File:        file,
		Filename:    fmt.Sprintf("%s-report.%s", job.Type, job.Params.Format),
		ContentType: contentType,
	}, nil
}

// RecoverPendingJobs re-enqueues jobs that were queued or processing when
// the process last stopped.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) error {
	pending, err := s.repo.ListUnfinishedJobs(ctx)
	if err != nil {
		return err
	}
	for i := range pending {
		job := &pending[i]
		if err := s.enqueue(job); err != nil {
			s.logger.Error("failed to recover report job", zap.String("job_id", job.ID), zap.Error(err))
			if failErr := s.repo.FailJob(ctx, job.ID, "interrupted and could not be recovered"); failErr != nil {
				s.logger.Error("failed to mark report job failed", zap.String("job_id", job.ID), zap.Error(failErr))
			}
			continue
		}
		s.logger.Info("recovered report job", zap.String("job_id", job.ID))
	}
	return nil
}

// StartCleanup periodically deletes exported files older than the file TTL.
func (s *ReportService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.storage.CleanupOlderThan(s.fileTTL)
				if err != nil {
					s.logger.Error("report file cleanup failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("cleaned up expired report files", zap.Int("count", len(deleted)))
				}
			}
		}
	}()
}

func (s *ReportService) cacheSet(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache report", zap.String("key", key), zap.Error(err))
	}
}

func reportCacheKey(reportType models.ReportType, start, end *time.Time) string {
	from, to := "all", "all"
	if start != nil {
		from = start.Format("2006-01-02")
	}
	if end != nil {
		to = end.Format("2006-01-02")
	}
	return fmt.Sprintf("reports:%s:%s:%s", reportType, from, to)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evaldesk/appraisal-api/internal/models"
)

const reportJobColumns = `id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message`

// ReportRepository provides database access for report jobs and the aggregate
// queries feeding report payloads.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CreateJob persists a queued report job.
func (r *ReportRepository) CreateJob(ctx context.Context, job *models.ReportJob) error {
	job.ID = uuid.New().String()
	job.Status = models.ReportStatusQueued
	job.Progress = 0
	job.CreatedAt = time.Now()

	const query = `
		INSERT INTO report_jobs (id, type, params, status, progress, created_by, created_at)
		VALUES (:id, :type, :params, :status, :progress, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindJob returns a report job by identifier.
func (r *ReportRepository) FindJob(ctx context.Context, id string) (*models.ReportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_jobs WHERE id = $1 LIMIT 1`, reportJobColumns)
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report job: %w", err)
	}
	return &job, nil
}

// ListJobs returns the most recent jobs created by one user.
func (r *ReportRepository) ListJobs(ctx context.Context, createdBy string, limit int) ([]models.ReportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_jobs WHERE created_by = $1 ORDER BY created_at DESC LIMIT $2`, reportJobColumns)
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, createdBy, limit); err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	return jobs, nil
}

// ListUnfinishedJobs returns jobs still queued or processing, oldest first.
// Used on startup to re-enqueue work interrupted by a restart.
func (r *ReportRepository) ListUnfinishedJobs(ctx context.Context) ([]models.ReportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_jobs WHERE status IN ($1, $2) ORDER BY created_at`, reportJobColumns)
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReportStatusQueued, models.ReportStatusProcessing); err != nil {
		return nil, fmt.Errorf("list unfinished report jobs: %w", err)
	}
	return jobs, nil
}

// UpdateJobProgress advances a running job.
func (r *ReportRepository) UpdateJobProgress(ctx context.Context, id string, status models.ReportStatus, progress int) error {
	const query = `UPDATE report_jobs SET status = $2, progress = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, progress); err != nil {
		return fmt.Errorf("update report job progress: %w", err)
	}
	return nil
}

// FinishJob marks a job finished with its download URL.
func (r *ReportRepository) FinishJob(ctx context.Context, id, resultURL string) error {
	const query = `
		UPDATE report_jobs
		SET status = $2, progress = 100, result_url = $3, finished_at = NOW()
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFinished, resultURL); err != nil {
		return fmt.Errorf("finish report job: %w", err)
	}
	return nil
}

// FailJob records a terminal failure with its message.
func (r *ReportRepository) FailJob(ctx context.Context, id, message string) error {
	const query = `
		UPDATE report_jobs
		SET status = $2, error_message = $3, finished_at = NOW()
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFailed, message); err != nil {
		return fmt.Errorf("fail report job: %w", err)
	}
	return nil
}

// UserCounts returns total and active user headcounts.
func (r *ReportRepository) UserCounts(ctx context.Context) (total, active int, err error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active FROM users`
	row := struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("user counts: %w", err)
	}
	return row.Total, row.Active, nil
}

// DepartmentCount returns the number of active departments.
func (r *ReportRepository) DepartmentCount(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM departments WHERE is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("department count: %w", err)
	}
	return count, nil
}

// TeamCount returns the number of active teams.
func (r *ReportRepository) TeamCount(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM teams WHERE is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("team count: %w", err)
	}
	return count, nil
}

// RoleDistribution returns per-role user counts.
func (r *ReportRepository) RoleDistribution(ctx context.Context) ([]models.RoleCount, error) {
	const query = `
		SELECT role, COUNT(*) AS count, COUNT(*) FILTER (WHERE is_active) AS active_count
		FROM users
		GROUP BY role
		ORDER BY role`
	var rows []models.RoleCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("role distribution: %w", err)
	}
	return rows, nil
}

// RecentUsers returns the newest registered users.
func (r *ReportRepository) RecentUsers(ctx context.Context, limit int) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY created_at DESC LIMIT $1`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, limit); err != nil {
		return nil, fmt.Errorf("recent users: %w", err)
	}
	return users, nil
}

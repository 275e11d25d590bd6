package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evaldesk/appraisal-api/internal/models"
)

const evaluationColumns = `e.id, e.task_id, e.evaluator_id, e.evaluatee_id, e.evaluation_type, e.period_start, e.period_end, e.criteria, e.overall_score, e.strengths, e.areas_for_improvement, e.recommendations, e.status, e.reviewed_by, e.review_date, e.review_comments, e.is_active, e.created_at, e.updated_at`

const evaluationJoins = `
        LEFT JOIN users ev ON ev.id = e.evaluator_id
        LEFT JOIN users ee ON ee.id = e.evaluatee_id
        LEFT JOIN tasks t ON t.id = e.task_id`

const evaluationJoinColumns = evaluationColumns + `,
        ev.first_name || ' ' || ev.last_name AS evaluator_name,
        ee.first_name || ' ' || ee.last_name AS evaluatee_name,
        t.title AS task_title`

// EvaluationRepository handles evaluation persistence.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository creates a new evaluation repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// FindByID returns an active evaluation with names populated.
func (r *EvaluationRepository) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations e %s WHERE e.id = $1 AND e.is_active = TRUE LIMIT 1`, evaluationJoinColumns, evaluationJoins)
	var evaluation models.Evaluation
	if err := r.db.GetContext(ctx, &evaluation, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find evaluation by id: %w", err)
	}
	return &evaluation, nil
}

// FindActive returns the active evaluation for a (task, evaluator, type)
// triple, or sql.ErrNoRows.
func (r *EvaluationRepository) FindActive(ctx context.Context, taskID, evaluatorID string, evaluationType models.EvaluationType) (*models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations e WHERE e.task_id = $1 AND e.evaluator_id = $2 AND e.evaluation_type = $3 AND e.is_active = TRUE LIMIT 1`, evaluationColumns)
	var evaluation models.Evaluation
	if err := r.db.GetContext(ctx, &evaluation, query, taskID, evaluatorID, evaluationType); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active evaluation: %w", err)
	}
	return &evaluation, nil
}

// List returns active evaluations matching the filter, newest first.
func (r *EvaluationRepository) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations e %s WHERE e.is_active = TRUE`, evaluationJoinColumns, evaluationJoins)
	var args []interface{}

	if filter.EvaluationType != "" {
		query += fmt.Sprintf(" AND e.evaluation_type = $%d", len(args)+1)
		args = append(args, filter.EvaluationType)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND e.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.EvaluateeID != "" {
		query += fmt.Sprintf(" AND e.evaluatee_id = $%d", len(args)+1)
		args = append(args, filter.EvaluateeID)
	}
	if filter.EvaluatorID != "" {
		query += fmt.Sprintf(" AND e.evaluator_id = $%d", len(args)+1)
		args = append(args, filter.EvaluatorID)
	}
	if filter.TaskID != "" {
		query += fmt.Sprintf(" AND e.task_id = $%d", len(args)+1)
		args = append(args, filter.TaskID)
	}
	if filter.ParticipantID != "" {
		query += fmt.Sprintf(" AND (e.evaluator_id = $%d OR e.evaluatee_id = $%d)", len(args)+1, len(args)+1)
		args = append(args, filter.ParticipantID)
	}
	if len(filter.TeamMemberIDs) > 0 {
		placeholders := make([]string, len(filter.TeamMemberIDs))
		for i, id := range filter.TeamMemberIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		in := strings.Join(placeholders, ",")
		query += fmt.Sprintf(" AND (e.evaluator_id IN (%s) OR e.evaluatee_id IN (%s))", in, in)
	}

	query += " ORDER BY e.created_at DESC"

	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, args...); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evaluations, nil
}

// ListForSubject returns the active evaluations of one evaluatee with a
// status that counts toward their composite result.
func (r *EvaluationRepository) ListForSubject(ctx context.Context, evaluateeID string) ([]models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations e %s
        WHERE e.evaluatee_id = $1 AND e.is_active = TRUE AND e.status IN ('submitted', 'reviewed', 'approved')
        ORDER BY e.created_at DESC`, evaluationJoinColumns, evaluationJoins)
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, evaluateeID); err != nil {
		return nil, fmt.Errorf("list evaluations for subject: %w", err)
	}
	return evaluations, nil
}

// Create inserts a fully validated evaluation in a single statement.
// A duplicate active (task, evaluator, type) triple yields ErrDuplicate.
func (r *EvaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if evaluation.CreatedAt.IsZero() {
		evaluation.CreatedAt = now
	}
	evaluation.UpdatedAt = now

	const query = `INSERT INTO evaluations (id, task_id, evaluator_id, evaluatee_id, evaluation_type, period_start, period_end, criteria, overall_score, strengths, areas_for_improvement, recommendations, status, is_active, created_at, updated_at)
        VALUES (:id, :task_id, :evaluator_id, :evaluatee_id, :evaluation_type, :period_start, :period_end, :criteria, :overall_score, :strengths, :areas_for_improvement, :recommendations, :status, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, evaluation); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create evaluation: %w", err)
	}
	return nil
}

// UpdateCriteria replaces the criteria and the derived overall score together.
func (r *EvaluationRepository) UpdateCriteria(ctx context.Context, id string, criteria models.CriteriaList, overallScore int) error {
	const query = `UPDATE evaluations SET criteria = $2, overall_score = $3, updated_at = $4 WHERE id = $1 AND is_active = TRUE`
	if _, err := r.db.ExecContext(ctx, query, id, criteria, overallScore, time.Now().UTC()); err != nil {
		return fmt.Errorf("update evaluation criteria: %w", err)
	}
	return nil
}

// SetReview records the approve/reject transition.
func (r *EvaluationRepository) SetReview(ctx context.Context, id string, status models.EvaluationStatus, reviewedBy string, reviewDate time.Time, reviewComments string) error {
	const query = `UPDATE evaluations SET status = $2, reviewed_by = $3, review_date = $4, review_comments = $5, updated_at = $4 WHERE id = $1 AND is_active = TRUE`
	if _, err := r.db.ExecContext(ctx, query, id, status, reviewedBy, reviewDate, reviewComments); err != nil {
		return fmt.Errorf("set evaluation review: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an evaluation. Records are never hard-deleted.
func (r *EvaluationRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE evaluations SET is_active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate evaluation: %w", err)
	}
	return nil
}

// SubjectResults aggregates per-type averages for all evaluatees in one pass,
// used by the performance report.
func (r *EvaluationRepository) SubjectResults(ctx context.Context, start, end *time.Time) ([]models.SubjectRow, error) {
	query := `SELECT e.evaluatee_id,
            ee.first_name || ' ' || ee.last_name AS evaluatee_name,
            COALESCE(ee.position, '') AS position,
            e.evaluation_type,
            AVG(e.overall_score) AS avg_score,
            COUNT(*) AS evaluation_count
        FROM evaluations e
        JOIN users ee ON ee.id = e.evaluatee_id
        WHERE e.is_active = TRUE AND e.status IN ('submitted', 'reviewed', 'approved')`
	var args []interface{}
	if start != nil {
		query += fmt.Sprintf(" AND e.created_at >= $%d", len(args)+1)
		args = append(args, *start)
	}
	if end != nil {
		query += fmt.Sprintf(" AND e.created_at <= $%d", len(args)+1)
		args = append(args, *end)
	}
	query += ` GROUP BY e.evaluatee_id, evaluatee_name, position, e.evaluation_type`

	var rows []models.SubjectRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate subject results: %w", err)
	}
	return rows, nil
}

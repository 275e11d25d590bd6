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

const taskColumns = `t.id, t.title, t.description, t.assigned_to, t.assigned_by, t.team_id, t.department_id,
	t.priority, t.status, t.category, t.due_date, t.start_date, t.completion_date, t.criteria,
	t.total_score, t.is_active, t.created_at, t.updated_at`

const taskJoinColumns = taskColumns + `,
	at.first_name || ' ' || at.last_name AS assigned_to_name,
	ab.first_name || ' ' || ab.last_name AS assigned_by_name`

const taskJoins = `
	FROM tasks t
	LEFT JOIN users at ON at.id = t.assigned_to
	LEFT JOIN users ab ON ab.id = t.assigned_by`

// TaskRepository provides database access for tasks and their criteria.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new instance of TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID returns an active task by identifier.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE t.id = $1 AND t.is_active = TRUE LIMIT 1`, taskJoinColumns, taskJoins)
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find task by id: %w", err)
	}
	return &task, nil
}

// List returns active tasks matching the filter with pagination.
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter, page, limit int) ([]models.Task, int, error) {
	where := ` WHERE t.is_active = TRUE`
	args := []interface{}{}
	argPos := 1

	if filter.Status != "" {
		where += fmt.Sprintf(" AND t.status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.Category != "" {
		where += fmt.Sprintf(" AND t.category = $%d", argPos)
		args = append(args, filter.Category)
		argPos++
	}
	if filter.AssignedTo != "" {
		where += fmt.Sprintf(" AND t.assigned_to = $%d", argPos)
		args = append(args, filter.AssignedTo)
		argPos++
	}
	if filter.TeamID != "" {
		where += fmt.Sprintf(" AND t.team_id = $%d", argPos)
		args = append(args, filter.TeamID)
		argPos++
	}
	if filter.DepartmentID != "" {
		where += fmt.Sprintf(" AND t.department_id = $%d", argPos)
		args = append(args, filter.DepartmentID)
		argPos++
	}

	countQuery := `SELECT COUNT(*)` + taskJoins + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d`,
		taskJoinColumns, taskJoins, where, argPos, argPos+1)
	args = append(args, limit, (page-1)*limit)

	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// Create inserts a new task and returns it with generated fields.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	task.ID = uuid.New().String()
	task.IsActive = true

	const query = `
		INSERT INTO tasks (id, title, description, assigned_to, assigned_by, team_id, department_id,
			priority, status, category, due_date, start_date, completion_date, criteria,
			total_score, is_active, created_at, updated_at)
		VALUES (:id, :title, :description, :assigned_to, :assigned_by, :team_id, :department_id,
			:priority, :status, :category, :due_date, :start_date, :completion_date, :criteria,
			:total_score, :is_active, NOW(), NOW())`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update persists mutable task fields.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	const query = `
		UPDATE tasks
		SET title = :title, description = :description, assigned_to = :assigned_to,
			team_id = :team_id, department_id = :department_id, priority = :priority,
			status = :status, category = :category, due_date = :due_date,
			completion_date = :completion_date, criteria = :criteria,
			total_score = :total_score, updated_at = NOW()
		WHERE id = :id AND is_active = TRUE`
	result, err := r.db.NamedExecContext(ctx, query, task)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves a task through its progress states.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status models.TaskStatus, completionDate *time.Time) error {
	const query = `UPDATE tasks SET status = $2, completion_date = $3, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, id, status, completionDate)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task status rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate soft deletes a task.
func (r *TaskRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE tasks SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate task rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

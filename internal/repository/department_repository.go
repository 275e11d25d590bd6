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

const departmentColumns = `id, name, code, description, is_active, created_at, updated_at`

const teamColumns = `id, name, code, department_id, leader_id, is_active, created_at, updated_at`

// DepartmentRepository provides database access for departments and their teams.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository creates a new instance of DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// FindByID returns a department by identifier.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE id = $1 LIMIT 1`, departmentColumns)
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department by id: %w", err)
	}
	return &dept, nil
}

// List returns departments, optionally including inactive ones.
func (r *DepartmentRepository) List(ctx context.Context, includeInactive bool) ([]models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments`, departmentColumns)
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name`
	var depts []models.Department
	if err := r.db.SelectContext(ctx, &depts, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

// Create inserts a new department and returns it with generated fields.
func (r *DepartmentRepository) Create(ctx context.Context, dept *models.Department) error {
	dept.ID = uuid.New().String()
	dept.IsActive = true
	now := time.Now()
	dept.CreatedAt = now
	dept.UpdatedAt = now

	const query = `
		INSERT INTO departments (id, name, code, description, is_active, created_at, updated_at)
		VALUES (:id, :name, :code, :description, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dept); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update persists mutable department fields.
func (r *DepartmentRepository) Update(ctx context.Context, dept *models.Department) error {
	dept.UpdatedAt = time.Now()
	const query = `
		UPDATE departments
		SET name = :name, code = :code, description = :description, updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, dept)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update department: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update department rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetActive toggles the soft-delete flag of a department.
func (r *DepartmentRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE departments SET is_active = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set department active: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set department active rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Summaries returns per-department member counts for reports.
func (r *DepartmentRepository) Summaries(ctx context.Context) ([]models.DepartmentSummary, error) {
	const query = `
		SELECT d.id, d.name, d.code,
			COUNT(u.id) AS employee_count,
			COUNT(u.id) FILTER (WHERE u.is_active) AS active_employees
		FROM departments d
		LEFT JOIN users u ON u.department_id = d.id
		WHERE d.is_active = TRUE
		GROUP BY d.id, d.name, d.code
		ORDER BY d.name`
	var rows []models.DepartmentSummary
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("department summaries: %w", err)
	}
	return rows, nil
}

// FindTeamByID returns a team by identifier.
func (r *DepartmentRepository) FindTeamByID(ctx context.Context, id string) (*models.Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE id = $1 LIMIT 1`, teamColumns)
	var team models.Team
	if err := r.db.GetContext(ctx, &team, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find team by id: %w", err)
	}
	return &team, nil
}

// ListTeams returns active teams, optionally scoped to one department.
func (r *DepartmentRepository) ListTeams(ctx context.Context, departmentID string) ([]models.Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE is_active = TRUE`, teamColumns)
	args := []interface{}{}
	if departmentID != "" {
		query += ` AND department_id = $1`
		args = append(args, departmentID)
	}
	query += ` ORDER BY name`
	var teams []models.Team
	if err := r.db.SelectContext(ctx, &teams, query, args...); err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

// CreateTeam inserts a new team and returns it with generated fields.
func (r *DepartmentRepository) CreateTeam(ctx context.Context, team *models.Team) error {
	team.ID = uuid.New().String()
	team.IsActive = true
	now := time.Now()
	team.CreatedAt = now
	team.UpdatedAt = now

	const query = `
		INSERT INTO teams (id, name, code, department_id, leader_id, is_active, created_at, updated_at)
		VALUES (:id, :name, :code, :department_id, :leader_id, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, team); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// UpdateTeam persists mutable team fields.
func (r *DepartmentRepository) UpdateTeam(ctx context.Context, team *models.Team) error {
	team.UpdatedAt = time.Now()
	const query = `
		UPDATE teams
		SET name = :name, code = :code, department_id = :department_id,
			leader_id = :leader_id, updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, team)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update team: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update team rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetTeamActive toggles the soft-delete flag of a team.
func (r *DepartmentRepository) SetTeamActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE teams SET is_active = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set team active: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set team active rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TeamMembers returns the trimmed member listing for a team.
func (r *DepartmentRepository) TeamMembers(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	const query = `
		SELECT id, first_name || ' ' || last_name AS full_name, email, position, role, employee_id
		FROM users
		WHERE team_id = $1 AND is_active = TRUE
		ORDER BY first_name, last_name`
	var members []models.TeamMember
	if err := r.db.SelectContext(ctx, &members, query, teamID); err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	return members, nil
}

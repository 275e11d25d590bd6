package models

import "time"

// Department groups employees under one organisational unit.
type Department struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentSummary is a department row enriched with member counts for reports.
type DepartmentSummary struct {
	ID              string `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	Code            string `db:"code" json:"code"`
	EmployeeCount   int    `db:"employee_count" json:"employee_count"`
	ActiveEmployees int    `db:"active_employees" json:"active_employees"`
}

// Team is a unit inside a department led by a team leader.
type Team struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	LeaderID     *string   `db:"leader_id" json:"leader_id,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CreateDepartmentRequest is the admin payload for creating a department.
type CreateDepartmentRequest struct {
	Name        string  `json:"name" validate:"required"`
	Code        string  `json:"code" validate:"required,alphanum"`
	Description *string `json:"description,omitempty"`
}

// UpdateDepartmentRequest carries mutable department fields. Nil means unchanged.
type UpdateDepartmentRequest struct {
	Name        *string `json:"name,omitempty"`
	Code        *string `json:"code,omitempty" validate:"omitempty,alphanum"`
	Description *string `json:"description,omitempty"`
}

// CreateTeamRequest is the admin payload for creating a team.
type CreateTeamRequest struct {
	Name         string  `json:"name" validate:"required"`
	Code         string  `json:"code" validate:"required,alphanum"`
	DepartmentID *string `json:"department_id,omitempty"`
	LeaderID     *string `json:"leader_id,omitempty"`
}

// UpdateTeamRequest carries mutable team fields. Nil means unchanged.
type UpdateTeamRequest struct {
	Name         *string `json:"name,omitempty"`
	Code         *string `json:"code,omitempty" validate:"omitempty,alphanum"`
	DepartmentID *string `json:"department_id,omitempty"`
	LeaderID     *string `json:"leader_id,omitempty"`
}

// TeamOverview is the per-team stats block served to team leaders.
type TeamOverview struct {
	Team        Team         `json:"team"`
	Members     []TeamMember `json:"members"`
	MemberCount int          `json:"member_count"`
}

// TeamMember is the trimmed view of a user returned by team member listings.
type TeamMember struct {
	ID         string  `db:"id" json:"id"`
	FullName   string  `db:"full_name" json:"full_name"`
	Email      string  `db:"email" json:"email"`
	Position   *string `db:"position" json:"position,omitempty"`
	Role       string  `db:"role" json:"role"`
	EmployeeID *string `db:"employee_id" json:"employee_id,omitempty"`
}

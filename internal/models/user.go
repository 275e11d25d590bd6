package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleTeamLeader UserRole = "team-leader"
	RoleEmployee   UserRole = "employee"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	EmployeeID   *string    `db:"employee_id" json:"employee_id,omitempty"`
	Position     *string    `db:"position" json:"position,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	Permissions  StringList `db:"permissions" json:"permissions"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	TeamID       *string    `db:"team_id" json:"team_id,omitempty"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role         *UserRole
	DepartmentID string
	TeamID       string
	IsActive     *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CreateUserRequest is the admin payload for registering a user.
type CreateUserRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required,min=6"`
	FirstName    string   `json:"first_name" validate:"required"`
	LastName     string   `json:"last_name" validate:"required"`
	EmployeeID   *string  `json:"employee_id,omitempty"`
	Position     *string  `json:"position,omitempty"`
	Phone        *string  `json:"phone,omitempty"`
	Role         UserRole `json:"role" validate:"required,oneof=admin team-leader employee"`
	Permissions  []string `json:"permissions,omitempty"`
	DepartmentID *string  `json:"department_id,omitempty"`
	TeamID       *string  `json:"team_id,omitempty"`
}

// UpdateUserRequest carries mutable user fields. Nil means unchanged.
type UpdateUserRequest struct {
	FirstName    *string   `json:"first_name,omitempty"`
	LastName     *string   `json:"last_name,omitempty"`
	EmployeeID   *string   `json:"employee_id,omitempty"`
	Position     *string   `json:"position,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	Role         *UserRole `json:"role,omitempty" validate:"omitempty,oneof=admin team-leader employee"`
	Permissions  []string  `json:"permissions,omitempty"`
	DepartmentID *string   `json:"department_id,omitempty"`
	TeamID       *string   `json:"team_id,omitempty"`
}

// UserStatusRequest toggles the active flag of a user.
type UserStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package models

// Permission labels guard feature access beyond the coarse role check.
const (
	PermManageUsers       = "manage_users"
	PermManageDepartments = "manage_departments"
	PermApproveResults    = "approve_results"
	PermViewReports       = "view_reports"
	PermCreateTask        = "create_task"
	PermEditTask          = "edit_task"
	PermEvaluateSelf      = "evaluate_self"
	PermEvaluatePeer      = "evaluate_peer"
)

// RolePolicy is one row of the immutable role policy table loaded at startup.
type RolePolicy struct {
	Role        UserRole `json:"role"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// DefaultRolePolicies is the single source of truth for role descriptions and
// default permissions. It doubles as the degraded-mode payload when the store
// is unreachable.
func DefaultRolePolicies() []RolePolicy {
	return []RolePolicy{
		{
			Role:        RoleAdmin,
			Description: "Full system access with user management capabilities",
			Permissions: []string{PermManageUsers, PermManageDepartments, PermApproveResults, PermViewReports},
		},
		{
			Role:        RoleTeamLeader,
			Description: "Team management with task creation and evaluation rights",
			Permissions: []string{PermCreateTask, PermEditTask, PermEvaluatePeer, PermEvaluateSelf, PermViewReports},
		},
		{
			Role:        RoleEmployee,
			Description: "Basic employee with self and peer evaluation rights",
			Permissions: []string{PermEvaluateSelf, PermEvaluatePeer},
		},
	}
}

// RoleListing is a policy row with the users currently holding the role.
type RoleListing struct {
	RolePolicy
	Users []RoleMember `json:"users"`
}

// RoleMember is the trimmed user view inside a role listing.
type RoleMember struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Position   *string `json:"position,omitempty"`
	EmployeeID *string `json:"employee_id,omitempty"`
	IsActive   bool    `json:"is_active"`
	Department string  `json:"department"`
	Team       string  `json:"team"`
}

// RoleMemberRow is the flat database row backing a RoleMember, carrying the
// role it is grouped under.
type RoleMemberRow struct {
	ID         string   `db:"id"`
	Name       string   `db:"name"`
	Email      string   `db:"email"`
	Position   *string  `db:"position"`
	EmployeeID *string  `db:"employee_id"`
	IsActive   bool     `db:"is_active"`
	Role       UserRole `db:"role"`
	Department string   `db:"department"`
	Team       string   `db:"team"`
}

// RolesResult carries role listings together with an explicit degraded flag so
// callers can tell live data from the static fallback.
type RolesResult struct {
	Roles    []RoleListing `json:"roles"`
	Degraded bool          `json:"degraded"`
}

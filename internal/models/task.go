package models

import "time"

// TaskPriority is the urgency bucket a task falls into.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// TaskStatus tracks task progress.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskCategory links a task to the evaluation flow it feeds.
type TaskCategory string

const (
	TaskCategorySelfEvaluation TaskCategory = "self_evaluation"
	TaskCategoryPeerEvaluation TaskCategory = "peer_evaluation"
	TaskCategoryOther          TaskCategory = "other"
)

// Task is a unit of work carrying the weighted criteria an evaluator scores.
type Task struct {
	ID             string       `db:"id" json:"id"`
	Title          string       `db:"title" json:"title"`
	Description    string       `db:"description" json:"description"`
	AssignedTo     string       `db:"assigned_to" json:"assigned_to"`
	AssignedBy     string       `db:"assigned_by" json:"assigned_by"`
	TeamID         *string      `db:"team_id" json:"team_id,omitempty"`
	DepartmentID   *string      `db:"department_id" json:"department_id,omitempty"`
	Priority       TaskPriority `db:"priority" json:"priority"`
	Status         TaskStatus   `db:"status" json:"status"`
	Category       TaskCategory `db:"category" json:"category"`
	DueDate        *time.Time   `db:"due_date" json:"due_date,omitempty"`
	StartDate      time.Time    `db:"start_date" json:"start_date"`
	CompletionDate *time.Time   `db:"completion_date" json:"completion_date,omitempty"`
	Criteria       CriteriaList `db:"criteria" json:"criteria"`
	TotalScore     int          `db:"total_score" json:"total_score"`
	IsActive       bool         `db:"is_active" json:"is_active"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`

	AssignedToName *string `db:"assigned_to_name" json:"assigned_to_name,omitempty"`
	AssignedByName *string `db:"assigned_by_name" json:"assigned_by_name,omitempty"`
}

// CreateTaskRequest is the payload for creating a task.
type CreateTaskRequest struct {
	Title        string       `json:"title" validate:"required"`
	Description  string       `json:"description,omitempty"`
	AssignedTo   string       `json:"assigned_to" validate:"required"`
	TeamID       *string      `json:"team_id,omitempty"`
	DepartmentID *string      `json:"department_id,omitempty"`
	Priority     TaskPriority `json:"priority" validate:"required,oneof=low medium high urgent"`
	Category     TaskCategory `json:"category" validate:"required,oneof=self_evaluation peer_evaluation other"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	StartDate    *time.Time   `json:"start_date,omitempty"`
	Criteria     []Criterion  `json:"criteria" validate:"required,min=1,dive"`
}

// UpdateTaskRequest carries mutable task fields. Nil means unchanged.
type UpdateTaskRequest struct {
	Title        *string       `json:"title,omitempty"`
	Description  *string       `json:"description,omitempty"`
	AssignedTo   *string       `json:"assigned_to,omitempty"`
	TeamID       *string       `json:"team_id,omitempty"`
	DepartmentID *string       `json:"department_id,omitempty"`
	Priority     *TaskPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Status       *TaskStatus   `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	DueDate      *time.Time    `json:"due_date,omitempty"`
	Criteria     []Criterion   `json:"criteria,omitempty" validate:"omitempty,min=1,dive"`
}

// TaskFilter captures query parameters for task listings.
type TaskFilter struct {
	Status       TaskStatus
	Category     TaskCategory
	AssignedTo   string
	TeamID       string
	DepartmentID string
}

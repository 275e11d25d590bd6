package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType enumerates supported aggregate report categories.
type ReportType string

const (
	ReportTypeOverview    ReportType = "overview"
	ReportTypeUsers       ReportType = "users"
	ReportTypeDepartments ReportType = "departments"
	ReportTypePerformance ReportType = "performance"
)

// Valid reports whether the report type is known.
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeOverview, ReportTypeUsers, ReportTypeDepartments, ReportTypePerformance:
		return true
	}
	return false
}

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob is persisted background export job metadata.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams stores request-scoped options persisted as JSONB.
type ReportJobParams struct {
	StartDate    *time.Time   `json:"startDate,omitempty"`
	EndDate      *time.Time   `json:"endDate,omitempty"`
	UserID       *string      `json:"userId,omitempty"`
	DepartmentID *string      `json:"departmentId,omitempty"`
	TeamID       *string      `json:"teamId,omitempty"`
	Format       ReportFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ReportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ReportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportJobParams", value)
	}
	if len(data) == 0 {
		*p = ReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}

// CreateReportRequest is the payload for queuing an asynchronous export.
type CreateReportRequest struct {
	Type      ReportType   `json:"type" validate:"required"`
	Format    ReportFormat `json:"format,omitempty"`
	StartDate *time.Time   `json:"start_date,omitempty"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
}

// ReportJobStatus is the polling payload for an asynchronous export.
type ReportJobStatus struct {
	ID           string       `json:"id"`
	Type         ReportType   `json:"type"`
	Status       ReportStatus `json:"status"`
	Progress     int          `json:"progress"`
	ResultURL    *string      `json:"result_url,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}

// SubjectRow is one grouped per-type average row feeding the composite
// score computation.
type SubjectRow struct {
	EvaluateeID     string         `db:"evaluatee_id" json:"evaluatee_id"`
	EvaluateeName   string         `db:"evaluatee_name" json:"evaluatee_name"`
	Position        string         `db:"position" json:"position"`
	EvaluationType  EvaluationType `db:"evaluation_type" json:"evaluation_type"`
	AvgScore        float64        `db:"avg_score" json:"avg_score"`
	EvaluationCount int            `db:"evaluation_count" json:"evaluation_count"`
}

// RoleCount is one row of the users-per-role aggregate.
type RoleCount struct {
	Role        UserRole `db:"role" json:"role"`
	Count       int      `db:"count" json:"count"`
	ActiveCount int      `db:"active_count" json:"active_count"`
}

// OverviewReport summarises organisation-wide headcounts.
type OverviewReport struct {
	TotalUsers       int         `json:"total_users"`
	ActiveUsers      int         `json:"active_users"`
	InactiveUsers    int         `json:"inactive_users"`
	TotalDepartments int         `json:"total_departments"`
	TotalTeams       int         `json:"total_teams"`
	ActivityRate     float64     `json:"activity_rate"`
	RecentUsers      []User      `json:"recent_users"`
	RoleDistribution []RoleCount `json:"role_distribution"`
}

// UsersReport lists users with per-role stats.
type UsersReport struct {
	Users      []User      `json:"users"`
	RoleStats  []RoleCount `json:"role_stats"`
	TotalUsers int         `json:"total_users"`
}

// DepartmentsReport aggregates department membership.
type DepartmentsReport struct {
	Departments []DepartmentSummary `json:"departments"`
	Total       int                 `json:"total"`
}

// PerformanceReport lists composite subject scores for a period.
type PerformanceReport struct {
	Subjects    []SubjectResult `json:"subjects"`
	PeriodStart *time.Time      `json:"period_start,omitempty"`
	PeriodEnd   *time.Time      `json:"period_end,omitempty"`
}

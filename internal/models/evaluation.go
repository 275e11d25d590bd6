package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// EvaluationType distinguishes who is scoring whom.
type EvaluationType string

const (
	EvaluationTypeSelf       EvaluationType = "self"
	EvaluationTypePeer       EvaluationType = "peer"
	EvaluationTypeSupervisor EvaluationType = "supervisor"
)

// Valid reports whether the type is one of the known evaluation types.
func (t EvaluationType) Valid() bool {
	switch t {
	case EvaluationTypeSelf, EvaluationTypePeer, EvaluationTypeSupervisor:
		return true
	}
	return false
}

// EvaluationStatus models the forward-moving review state machine.
type EvaluationStatus string

const (
	EvaluationStatusDraft     EvaluationStatus = "draft"
	EvaluationStatusSubmitted EvaluationStatus = "submitted"
	EvaluationStatusReviewed  EvaluationStatus = "reviewed"
	EvaluationStatusApproved  EvaluationStatus = "approved"
	EvaluationStatusRejected  EvaluationStatus = "rejected"
)

// Reviewable reports whether an approve/reject transition is permitted from
// this status. Approved and rejected are terminal.
func (s EvaluationStatus) Reviewable() bool {
	return s == EvaluationStatusSubmitted || s == EvaluationStatusReviewed
}

// Criterion is one weighted scoring line inside an evaluation or task.
// Score is nil until the evaluator fills it in.
type Criterion struct {
	Criterion string   `json:"criterion" validate:"required"`
	Weight    float64  `json:"weight" validate:"gte=0,lte=100"`
	Score     *float64 `json:"score,omitempty" validate:"omitempty,gte=0,lte=100"`
	Comment   string   `json:"comment,omitempty"`
	Evidence  string   `json:"evidence,omitempty"`
}

// WeightValue exposes the criterion weight for score aggregation.
func (c Criterion) WeightValue() float64 { return c.Weight }

// ScoreValue exposes the criterion score for score aggregation.
func (c Criterion) ScoreValue() *float64 { return c.Score }

// CriteriaList stores the ordered criterion sequence as a JSONB column.
type CriteriaList []Criterion

// Value implements driver.Valuer.
func (l CriteriaList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *CriteriaList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// EvaluationPeriod bounds the appraisal window. StartDate must not be after EndDate.
type EvaluationPeriod struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// Evaluation is one scoring record of an evaluatee by an evaluator.
type Evaluation struct {
	ID                  string           `db:"id" json:"id"`
	TaskID              *string          `db:"task_id" json:"task_id,omitempty"`
	EvaluatorID         string           `db:"evaluator_id" json:"evaluator_id"`
	EvaluateeID         string           `db:"evaluatee_id" json:"evaluatee_id"`
	EvaluationType      EvaluationType   `db:"evaluation_type" json:"evaluation_type"`
	PeriodStart         time.Time        `db:"period_start" json:"period_start"`
	PeriodEnd           time.Time        `db:"period_end" json:"period_end"`
	Criteria            CriteriaList     `db:"criteria" json:"criteria"`
	OverallScore        int              `db:"overall_score" json:"overall_score"`
	Strengths           StringList       `db:"strengths" json:"strengths"`
	AreasForImprovement StringList       `db:"areas_for_improvement" json:"areas_for_improvement"`
	Recommendations     StringList       `db:"recommendations" json:"recommendations"`
	Status              EvaluationStatus `db:"status" json:"status"`
	ReviewedBy          *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewDate          *time.Time       `db:"review_date" json:"review_date,omitempty"`
	ReviewComments      *string          `db:"review_comments" json:"review_comments,omitempty"`
	IsActive            bool             `db:"is_active" json:"is_active"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`

	EvaluatorName *string `db:"evaluator_name" json:"evaluator_name,omitempty"`
	EvaluateeName *string `db:"evaluatee_name" json:"evaluatee_name,omitempty"`
	TaskTitle     *string `db:"task_title" json:"task_title,omitempty"`
}

// EvaluationFilter captures query parameters for evaluation listings.
type EvaluationFilter struct {
	EvaluationType EvaluationType
	Status         EvaluationStatus
	EvaluateeID    string
	EvaluatorID    string
	TaskID         string

	// Visibility scoping resolved from the caller's role.
	ParticipantID string
	TeamMemberIDs []string
}

// CreateEvaluationRequest is the payload for creating an evaluation.
type CreateEvaluationRequest struct {
	TaskID              *string          `json:"task_id,omitempty"`
	EvaluateeID         string           `json:"evaluatee_id" validate:"required"`
	EvaluationType      EvaluationType   `json:"evaluation_type" validate:"required"`
	Period              EvaluationPeriod `json:"period" validate:"required"`
	Criteria            []Criterion      `json:"criteria" validate:"required,min=1,dive"`
	Strengths           []string         `json:"strengths,omitempty"`
	AreasForImprovement []string         `json:"areas_for_improvement,omitempty"`
	Recommendations     []string         `json:"recommendations,omitempty"`
	Status              EvaluationStatus `json:"status,omitempty" validate:"omitempty,oneof=draft submitted"`
}

// UpdateCriteriaRequest replaces the criteria of an evaluation.
type UpdateCriteriaRequest struct {
	Criteria []Criterion `json:"criteria" validate:"required,min=1,dive"`
}

// ReviewEvaluationRequest is the approve/reject payload.
type ReviewEvaluationRequest struct {
	Status   EvaluationStatus `json:"status" validate:"required,oneof=approved rejected"`
	Comments string           `json:"comments,omitempty"`
}

// RankItem is one ranked criterion line in a submission flow. Rank runs
// from 0 to 4.
type RankItem struct {
	Criterion string  `json:"criterion" validate:"required"`
	Weight    float64 `json:"weight" validate:"gte=0,lte=100"`
	Rank      float64 `json:"rank" validate:"gte=0,lte=4"`
}

// SelfSubmissionRequest is the yearly self-evaluation submission payload.
type SelfSubmissionRequest struct {
	Year       int        `json:"year" validate:"required,gte=2000,lte=2200"`
	TypeOfWork string     `json:"type_of_work,omitempty"`
	Items      []RankItem `json:"items" validate:"required,min=1,dive"`
}

// PeerSubmissionRequest is the yearly peer-evaluation submission payload.
// Behavioral selects the behavioral rank conversion.
type PeerSubmissionRequest struct {
	EvaluateeID string     `json:"evaluatee_id" validate:"required"`
	Year        int        `json:"year" validate:"required,gte=2000,lte=2200"`
	Behavioral  bool       `json:"behavioral,omitempty"`
	Items       []RankItem `json:"items" validate:"required,min=1,dive"`
}

// SubjectResult is the composite performance view for one evaluatee and period.
type SubjectResult struct {
	EvaluateeID     string  `json:"evaluatee_id"`
	EvaluateeName   string  `json:"evaluatee_name"`
	Position        string  `json:"position,omitempty"`
	Year            int     `json:"year"`
	SelfScore       float64 `json:"self_score"`
	PeerScore       float64 `json:"peer_score"`
	SupervisorScore float64 `json:"supervisor_score"`
	CompositeScore  int     `json:"composite_score"`
	EvaluationCount int     `json:"evaluation_count"`
	LeaderName      string  `json:"leader_name,omitempty"`
}

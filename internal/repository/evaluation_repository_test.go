package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaldesk/appraisal-api/internal/models"
)

var evaluationTestColumns = []string{"id", "task_id", "evaluator_id", "evaluatee_id", "evaluation_type", "period_start", "period_end", "criteria", "overall_score", "strengths", "areas_for_improvement", "recommendations", "status", "reviewed_by", "review_date", "review_comments", "is_active", "created_at", "updated_at"}

func evaluationRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(evaluationTestColumns).
		AddRow("e1", "t1", "u1", "u2", string(models.EvaluationTypePeer), now, now,
			[]byte(`[{"criterion":"Quality","weight":50,"score":80}]`), 80,
			[]byte(`[]`), []byte(`[]`), []byte(`[]`),
			string(models.EvaluationStatusSubmitted), nil, nil, nil, true, now, now)
}

func TestEvaluationFindActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectQuery("SELECT .+ FROM evaluations e WHERE e.task_id = .+ AND e.evaluator_id = .+ AND e.evaluation_type = .+ AND e.is_active = TRUE LIMIT 1").
		WithArgs("t1", "u1", string(models.EvaluationTypePeer)).
		WillReturnRows(evaluationRow(time.Now()))

	evaluation, err := repo.FindActive(context.Background(), "t1", "u1", models.EvaluationTypePeer)
	require.NoError(t, err)
	assert.Equal(t, 80, evaluation.OverallScore)
	require.Len(t, evaluation.Criteria, 1)
	assert.Equal(t, "Quality", evaluation.Criteria[0].Criterion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationFindActiveNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectQuery("SELECT .+ FROM evaluations e WHERE e.task_id =").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActive(context.Background(), "t1", "u1", models.EvaluationTypeSelf)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationCreateDuplicateTriple(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectExec("INSERT INTO evaluations").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "evaluations_task_evaluator_type_active_idx"})

	taskID := "t1"
	err := repo.Create(context.Background(), &models.Evaluation{
		TaskID:         &taskID,
		EvaluatorID:    "u1",
		EvaluateeID:    "u1",
		EvaluationType: models.EvaluationTypeSelf,
		Status:         models.EvaluationStatusSubmitted,
		IsActive:       true,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationListTeamScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(append(evaluationTestColumns, "evaluator_name", "evaluatee_name", "task_title")).
		AddRow("e1", "t1", "u1", "u2", string(models.EvaluationTypePeer), now, now,
			[]byte(`[]`), 75, []byte(`[]`), []byte(`[]`), []byte(`[]`),
			string(models.EvaluationStatusSubmitted), nil, nil, nil, true, now, now,
			"Eva Luator", "Eva Luatee", "Sprint review")

	mock.ExpectQuery(regexp.QuoteMeta("AND (e.evaluator_id IN ($1,$2) OR e.evaluatee_id IN ($1,$2)) ORDER BY e.created_at DESC")).
		WithArgs("u1", "u2").
		WillReturnRows(rows)

	evaluations, err := repo.List(context.Background(), models.EvaluationFilter{TeamMemberIDs: []string{"u1", "u2"}})
	require.NoError(t, err)
	require.Len(t, evaluations, 1)
	assert.Equal(t, "Eva Luator", *evaluations[0].EvaluatorName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationSetReview(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	reviewDate := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluations SET status = $2, reviewed_by = $3, review_date = $4, review_comments = $5, updated_at = $4 WHERE id = $1 AND is_active = TRUE")).
		WithArgs("e1", string(models.EvaluationStatusApproved), "admin-1", reviewDate, "looks good").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetReview(context.Background(), "e1", models.EvaluationStatusApproved, "admin-1", reviewDate, "looks good")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectResults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	rows := sqlmock.NewRows([]string{"evaluatee_id", "evaluatee_name", "position", "evaluation_type", "avg_score", "evaluation_count"}).
		AddRow("u2", "Eva Luatee", "Engineer", string(models.EvaluationTypePeer), 78.5, 2).
		AddRow("u2", "Eva Luatee", "Engineer", string(models.EvaluationTypeSelf), 85.0, 1)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT e.evaluatee_id,").
		WithArgs(start).
		WillReturnRows(rows)

	results, err := repo.SubjectResults(context.Background(), &start, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.EvaluationTypePeer, results[0].EvaluationType)
	assert.InDelta(t, 78.5, results[0].AvgScore, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

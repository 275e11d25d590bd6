package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaldesk/appraisal-api/internal/models"
)

var taskTestColumns = []string{"id", "title", "description", "assigned_to", "assigned_by", "team_id", "department_id", "priority", "status", "category", "due_date", "start_date", "completion_date", "criteria", "total_score", "is_active", "created_at", "updated_at", "assigned_to_name", "assigned_by_name"}

func taskRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(taskTestColumns).
		AddRow("t1", "Sprint review", "Quarterly deliverables", "u2", "u1", "team-1", nil,
			string(models.TaskPriorityHigh), string(models.TaskStatusPending), string(models.TaskCategoryPeerEvaluation),
			nil, now, nil, []byte(`[{"criterion":"Quality","weight":60},{"criterion":"Timeliness","weight":40}]`),
			0, true, now, now, "Eva Luatee", "Lead Erin")
}

func TestTaskFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectQuery("SELECT .+ FROM tasks t .+ WHERE t.id = .+ AND t.is_active = TRUE LIMIT 1").
		WithArgs("t1").
		WillReturnRows(taskRow(time.Now()))

	task, err := repo.FindByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Sprint review", task.Title)
	require.Len(t, task.Criteria, 2)
	assert.InDelta(t, 60, task.Criteria[0].Weight, 0.001)
	assert.Equal(t, "Eva Luatee", *task.AssignedToName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskListFiltered(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(string(models.TaskStatusPending), "u2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .+ FROM tasks t .+ ORDER BY t.created_at DESC LIMIT .+ OFFSET").
		WithArgs(string(models.TaskStatusPending), "u2", 20, 0).
		WillReturnRows(taskRow(time.Now()))

	tasks, total, err := repo.List(context.Background(), models.TaskFilter{
		Status:     models.TaskStatusPending,
		AssignedTo: "u2",
	}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectExec("INSERT INTO tasks").WillReturnResult(sqlmock.NewResult(1, 1))

	task := &models.Task{
		Title:      "Sprint review",
		AssignedTo: "u2",
		AssignedBy: "u1",
		Priority:   models.TaskPriorityMedium,
		Status:     models.TaskStatusPending,
		Category:   models.TaskCategorySelfEvaluation,
		StartDate:  time.Now(),
	}
	err := repo.Create(context.Background(), task)
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.True(t, task.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectExec("UPDATE tasks").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Task{ID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskDeactivate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Deactivate(context.Background(), "t1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaldesk/appraisal-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userTestColumns = []string{"id", "email", "password_hash", "first_name", "last_name", "employee_id", "position", "phone", "role", "permissions", "department_id", "team_id", "is_active", "last_login", "created_at", "updated_at"}

func userRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userTestColumns).
		AddRow("u1", "user@example.com", "hash", "Ada", "Lovelace", "EMP-001", "Engineer", nil,
			string(models.RoleEmployee), []byte(`["evaluate_self"]`), nil, "team-1", true, now, now, now)
}

func TestUserFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(userRow(time.Now()))

	user, err := repo.FindByEmail(context.Background(), "USER@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, "Ada Lovelace", user.FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT .+ FROM users WHERE id =").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), &models.User{
		Email:     "dupe@example.com",
		FirstName: "Dupe",
		LastName:  "User",
		Role:      models.RoleEmployee,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	role := models.RoleTeamLeader
	active := true

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE 1=1 AND role = $1 AND is_active = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(string(role), active).
		WillReturnRows(userRow(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND role = $1 AND is_active = $2")).
		WithArgs(string(role), active).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, IsActive: &active})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserListRejectsUnknownSort(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WillReturnRows(userRow(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), models.UserFilter{SortBy: "password_hash; DROP TABLE users"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamMemberIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE team_id = $1 AND is_active = TRUE")).
		WithArgs("team-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1").AddRow("u2"))

	ids, err := repo.TeamMemberIDs(context.Background(), "team-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{
		UserID:    "u1",
		Token:     "token",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeUserRefreshTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.RevokeUserRefreshTokens(context.Background(), "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

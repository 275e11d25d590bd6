package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/repository"
	appErrors "github.com/evaldesk/appraisal-api/pkg/errors"
)

type mockEvaluationRepo struct {
	byID       map[string]*models.Evaluation
	active     *models.Evaluation
	created    []*models.Evaluation
	createErr  error
	listResult []models.Evaluation
	lastFilter models.EvaluationFilter
	subject    []models.Evaluation

	reviewStatus models.EvaluationStatus
	reviewedBy   string
	reviewDate   time.Time
	deactivated  []string
}

func (m *mockEvaluationRepo) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvaluationRepo) FindActive(ctx context.Context, taskID, evaluatorID string, evaluationType models.EvaluationType) (*models.Evaluation, error) {
	if m.active != nil {
		return m.active, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvaluationRepo) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, error) {
	m.lastFilter = filter
	return m.listResult, nil
}

func (m *mockEvaluationRepo) ListForSubject(ctx context.Context, evaluateeID string) ([]models.Evaluation, error) {
	return m.subject, nil
}

func (m *mockEvaluationRepo) Create(ctx context.Context, evaluation *models.Evaluation) error {
	if m.createErr != nil {
		return m.createErr
	}
	evaluation.ID = "generated"
	m.created = append(m.created, evaluation)
	return nil
}

func (m *mockEvaluationRepo) UpdateCriteria(ctx context.Context, id string, criteria models.CriteriaList, overallScore int) error {
	return nil
}

func (m *mockEvaluationRepo) SetReview(ctx context.Context, id string, status models.EvaluationStatus, reviewedBy string, reviewDate time.Time, reviewComments string) error {
	m.reviewStatus = status
	m.reviewedBy = reviewedBy
	m.reviewDate = reviewDate
	return nil
}

func (m *mockEvaluationRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockEvaluationRepo) SubjectResults(ctx context.Context, start, end *time.Time) ([]models.SubjectRow, error) {
	return nil, nil
}

type mockEvalUserRepo struct {
	users       map[string]*models.User
	teamMembers map[string][]string
	auditLogs   []*models.AuditLog
}

func (m *mockEvalUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvalUserRepo) TeamMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	return m.teamMembers[teamID], nil
}

func (m *mockEvalUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockEvalTaskRepo struct {
	tasks map[string]*models.Task
}

func (m *mockEvalTaskRepo) FindByID(ctx context.Context, id string) (*models.Task, error) {
	if t, ok := m.tasks[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func evalClaims(userID string, role models.UserRole, teamID *string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role, TeamID: teamID}
}

func validPeriod() models.EvaluationPeriod {
	return models.EvaluationPeriod{
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func newEvalService(repo *mockEvaluationRepo, users *mockEvalUserRepo, tasks *mockEvalTaskRepo) *EvaluationService {
	if repo.byID == nil {
		repo.byID = map[string]*models.Evaluation{}
	}
	if users == nil {
		users = &mockEvalUserRepo{users: map[string]*models.User{}}
	}
	if tasks == nil {
		tasks = &mockEvalTaskRepo{tasks: map[string]*models.Task{}}
	}
	return NewEvaluationService(repo, users, tasks, nil, nil)
}

func assertErrCode(t *testing.T, err error, want *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, want.Code, appErr.Code)
	assert.Equal(t, want.Status, appErr.Status)
}

func TestCreateSelfRequiresMatchingEvaluatee(t *testing.T) {
	svc := newEvalService(&mockEvaluationRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), evalClaims("u1", models.RoleEmployee, nil), models.CreateEvaluationRequest{
		EvaluateeID:    "someone-else",
		EvaluationType: models.EvaluationTypeSelf,
		Period:         validPeriod(),
		Criteria:       []models.Criterion{{Criterion: "Quality", Weight: 100, Score: floatPtr(80)}},
	})
	assertErrCode(t, err, appErrors.ErrForbidden)
}

func TestCreatePeerCrossTeamForbidden(t *testing.T) {
	users := &mockEvalUserRepo{users: map[string]*models.User{
		"u2": {ID: "u2", TeamID: strPtr("team-b")},
	}}
	svc := newEvalService(&mockEvaluationRepo{}, users, nil)

	_, err := svc.Create(context.Background(), evalClaims("u1", models.RoleEmployee, strPtr("team-a")), models.CreateEvaluationRequest{
		EvaluateeID:    "u2",
		EvaluationType: models.EvaluationTypePeer,
		Period:         validPeriod(),
		Criteria:       []models.Criterion{{Criterion: "Quality", Weight: 100, Score: floatPtr(80)}},
	})
	assertErrCode(t, err, appErrors.ErrForbidden)
}

func TestCreatePeerAllowedWhenEvaluateeHasNoTeam(t *testing.T) {
	repo := &mockEvaluationRepo{}
	users := &mockEvalUserRepo{users: map[string]*models.User{
		"u2": {ID: "u2"},
	}}
	svc := newEvalService(repo, users, nil)

	evaluation, err := svc.Create(context.Background(), evalClaims("u1", models.RoleEmployee, strPtr("team-a")), models.CreateEvaluationRequest{
		EvaluateeID:    "u2",
		EvaluationType: models.EvaluationTypePeer,
		Period:         validPeriod(),
		Criteria:       []models.Criterion{{Criterion: "Quality", Weight: 100, Score: floatPtr(80)}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationStatusDraft, evaluation.Status)
}

func TestCreateSupervisorRequiresLeaderOrAdmin(t *testing.T) {
	svc := newEvalService(&mockEvaluationRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), evalClaims("u1", models.RoleEmployee, nil), models.CreateEvaluationRequest{
		EvaluateeID:    "u2",
		EvaluationType: models.EvaluationTypeSupervisor,
		Period:         validPeriod(),
		Criteria:       []models.Criterion{{Criterion: "Quality", Weight: 100, Score: floatPtr(80)}},
	})
	assertErrCode(t, err, appErrors.ErrForbidden)
}

func TestCreateComputesWeightedOverallScore(t *testing.T) {
	repo := &mockEvaluationRepo{}
	svc := newEvalService(repo, nil, nil)

	evaluation, err := svc.Create(context.Background(), evalClaims("u1", models.RoleEmployee, nil), models.CreateEvaluationRequest{
		EvaluateeID:    "u1",
		EvaluationType: models.EvaluationTypeSelf,
		Period:         validPeriod(),
		Criteria: []models.Criterion{
			{Criterion: "Quality", Weight: 50, Score: floatPtr(80)},
			{Criterion: "Timeliness", Weight: 50, Score: floatPtr(60)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 70, evaluation.OverallScore)
	require.Len(t, repo.created, 1)
}

func TestCreateRejectsInvertedPeriod(t *testing.T) {
	svc := newEvalService(&mockEvaluationRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), evalClaims("u1", models.RoleEmployee, nil), models.CreateEvaluationRequest{
		EvaluateeID:    "u1",
		EvaluationType: models.EvaluationTypeSelf,
		Period: models.EvaluationPeriod{
			StartDate: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Criteria: []models.Criterion{{Criterion: "Quality", Weight: 100, Score: floatPtr(80)}},
	})
	assertErrCode(t, err, appErrors.ErrValidation)
}

func TestCreateDuplicateTaskEvaluationConflicts(t *testing.T) {
	repo := &mockEvaluationRepo{active: &models.Evaluation{ID: "existing"}}
	tasks := &mockEvalTaskRepo{tasks: map[string]*models.Task{"t1": {ID: "t1"}}}
	svc := newEvalService(repo, nil, tasks)

	_, err := svc.Create(context.Background(), evalClaims("u1", models.RoleEmployee, nil), models.CreateEvaluationRequest{
		TaskID:         strPtr("t1"),
		EvaluateeID:    "u1",
		EvaluationType: models.EvaluationTypeSelf,
		Period:         validPeriod(),
		Criteria:       []models.Criterion{{Criterion: "Quality", Weight: 100, Score: floatPtr(80)}},
	})
	assertErrCode(t, err, appErrors.ErrConflict)
	assert.Empty(t, repo.created)
}

func TestCreateTranslatesInsertDuplicateToConflict(t *testing.T) {
	repo := &mockEvaluationRepo{createErr: repository.ErrDuplicate}
	tasks := &mockEvalTaskRepo{tasks: map[string]*models.Task{"t1": {ID: "t1"}}}
	svc := newEvalService(repo, nil, tasks)

	_, err := svc.Create(context.Background(), evalClaims("u1", models.RoleEmployee, nil), models.CreateEvaluationRequest{
		TaskID:         strPtr("t1"),
		EvaluateeID:    "u1",
		EvaluationType: models.EvaluationTypeSelf,
		Period:         validPeriod(),
		Criteria:       []models.Criterion{{Criterion: "Quality", Weight: 100, Score: floatPtr(80)}},
	})
	assertErrCode(t, err, appErrors.ErrConflict)
}

func TestSubmitSelfConvertsRanks(t *testing.T) {
	repo := &mockEvaluationRepo{}
	svc := newEvalService(repo, nil, nil)

	evaluation, err := svc.SubmitSelf(context.Background(), evalClaims("u1", models.RoleEmployee, nil), models.SelfSubmissionRequest{
		Year: 2026,
		Items: []models.RankItem{
			{Criterion: "Planning", Weight: 100, Rank: 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationStatusSubmitted, evaluation.Status)
	require.Len(t, evaluation.Criteria, 1)
	// rank 4 of 4 at weight 100 with the self factor gives a full score
	assert.InDelta(t, 100, *evaluation.Criteria[0].Score, 0.001)
	assert.Equal(t, 2026, evaluation.PeriodStart.Year())
	require.Len(t, repo.created, 1)
}

func TestSubmitPeerBehavioralUsesReducedFactor(t *testing.T) {
	repo := &mockEvaluationRepo{}
	users := &mockEvalUserRepo{users: map[string]*models.User{
		"u2": {ID: "u2", TeamID: strPtr("team-a")},
	}}
	svc := newEvalService(repo, users, nil)

	evaluation, err := svc.SubmitPeer(context.Background(), evalClaims("u1", models.RoleEmployee, strPtr("team-a")), models.PeerSubmissionRequest{
		EvaluateeID: "u2",
		Year:        2026,
		Behavioral:  true,
		Items: []models.RankItem{
			{Criterion: "Teamwork", Weight: 100, Rank: 4},
		},
	})
	require.NoError(t, err)
	require.Len(t, evaluation.Criteria, 1)
	assert.InDelta(t, 10, *evaluation.Criteria[0].Score, 0.001)
}

func TestListScopesEmployeeToOwnEvaluations(t *testing.T) {
	repo := &mockEvaluationRepo{}
	svc := newEvalService(repo, nil, nil)

	_, err := svc.List(context.Background(), evalClaims("u1", models.RoleEmployee, nil), models.EvaluationFilter{})
	require.NoError(t, err)
	assert.Equal(t, "u1", repo.lastFilter.ParticipantID)
	assert.Empty(t, repo.lastFilter.TeamMemberIDs)
}

func TestListScopesLeaderToTeam(t *testing.T) {
	repo := &mockEvaluationRepo{}
	users := &mockEvalUserRepo{teamMembers: map[string][]string{"team-a": {"u2", "u3"}}}
	svc := newEvalService(repo, users, nil)

	_, err := svc.List(context.Background(), evalClaims("u1", models.RoleTeamLeader, strPtr("team-a")), models.EvaluationFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3", "u1"}, repo.lastFilter.TeamMemberIDs)
}

func TestReviewForbiddenForEmployee(t *testing.T) {
	repo := &mockEvaluationRepo{byID: map[string]*models.Evaluation{
		"e1": {ID: "e1", EvaluateeID: "u2", Status: models.EvaluationStatusSubmitted},
	}}
	svc := newEvalService(repo, nil, nil)

	_, err := svc.Review(context.Background(), evalClaims("u1", models.RoleEmployee, nil), "e1", models.ReviewEvaluationRequest{
		Status: models.EvaluationStatusApproved,
	})
	assertErrCode(t, err, appErrors.ErrForbidden)
}

func TestReviewLeaderLimitedToOwnTeam(t *testing.T) {
	repo := &mockEvaluationRepo{byID: map[string]*models.Evaluation{
		"e1": {ID: "e1", EvaluateeID: "u2", Status: models.EvaluationStatusSubmitted},
	}}
	users := &mockEvalUserRepo{users: map[string]*models.User{
		"u2": {ID: "u2", TeamID: strPtr("team-b")},
	}}
	svc := newEvalService(repo, users, nil)

	_, err := svc.Review(context.Background(), evalClaims("lead-1", models.RoleTeamLeader, strPtr("team-a")), "e1", models.ReviewEvaluationRequest{
		Status: models.EvaluationStatusApproved,
	})
	assertErrCode(t, err, appErrors.ErrForbidden)
}

func TestReviewApproveSetsReviewFields(t *testing.T) {
	repo := &mockEvaluationRepo{byID: map[string]*models.Evaluation{
		"e1": {ID: "e1", EvaluateeID: "u2", Status: models.EvaluationStatusSubmitted},
	}}
	users := &mockEvalUserRepo{users: map[string]*models.User{}}
	svc := newEvalService(repo, users, nil)

	evaluation, err := svc.Review(context.Background(), evalClaims("admin-1", models.RoleAdmin, nil), "e1", models.ReviewEvaluationRequest{
		Status:   models.EvaluationStatusApproved,
		Comments: "well done",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationStatusApproved, evaluation.Status)
	require.NotNil(t, evaluation.ReviewedBy)
	assert.Equal(t, "admin-1", *evaluation.ReviewedBy)
	assert.NotNil(t, evaluation.ReviewDate)
	assert.Equal(t, models.EvaluationStatusApproved, repo.reviewStatus)
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionEvaluationReview, users.auditLogs[0].Action)
}

func TestReviewTerminalStatusRejected(t *testing.T) {
	repo := &mockEvaluationRepo{byID: map[string]*models.Evaluation{
		"e1": {ID: "e1", EvaluateeID: "u2", Status: models.EvaluationStatusApproved},
	}}
	svc := newEvalService(repo, nil, nil)

	_, err := svc.Review(context.Background(), evalClaims("admin-1", models.RoleAdmin, nil), "e1", models.ReviewEvaluationRequest{
		Status: models.EvaluationStatusRejected,
	})
	assertErrCode(t, err, appErrors.ErrInvalidStatus)
}

func TestResultsCompositeWeighting(t *testing.T) {
	repo := &mockEvaluationRepo{subject: []models.Evaluation{
		{EvaluationType: models.EvaluationTypeSelf, OverallScore: 80},
		{EvaluationType: models.EvaluationTypePeer, OverallScore: 70},
		{EvaluationType: models.EvaluationTypePeer, OverallScore: 90},
		{EvaluationType: models.EvaluationTypeSupervisor, OverallScore: 60},
	}}
	users := &mockEvalUserRepo{users: map[string]*models.User{
		"u2": {ID: "u2", FirstName: "Eva", LastName: "Luatee"},
	}}
	svc := newEvalService(repo, users, nil)

	result, err := svc.Results(context.Background(), evalClaims("admin-1", models.RoleAdmin, nil), "u2")
	require.NoError(t, err)
	// 0.70*60 + 0.15*80 + 0.15*80 = 66
	assert.Equal(t, 66, result.CompositeScore)
	assert.InDelta(t, 80, result.SelfScore, 0.001)
	assert.InDelta(t, 80, result.PeerScore, 0.001)
	assert.InDelta(t, 60, result.SupervisorScore, 0.001)
	assert.Equal(t, 4, result.EvaluationCount)
}

func TestResultsEmployeeCannotViewOthers(t *testing.T) {
	svc := newEvalService(&mockEvaluationRepo{}, nil, nil)

	_, err := svc.Results(context.Background(), evalClaims("u1", models.RoleEmployee, nil), "u2")
	assertErrCode(t, err, appErrors.ErrForbidden)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/repository"
	appErrors "github.com/evaldesk/appraisal-api/pkg/errors"
)

type departmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
	List(ctx context.Context, includeInactive bool) ([]models.Department, error)
	Create(ctx context.Context, dept *models.Department) error
	Update(ctx context.Context, dept *models.Department) error
	SetActive(ctx context.Context, id string, active bool) error
	Summaries(ctx context.Context) ([]models.DepartmentSummary, error)

	FindTeamByID(ctx context.Context, id string) (*models.Team, error)
	ListTeams(ctx context.Context, departmentID string) ([]models.Team, error)
	CreateTeam(ctx context.Context, team *models.Team) error
	UpdateTeam(ctx context.Context, team *models.Team) error
	SetTeamActive(ctx context.Context, id string, active bool) error
	TeamMembers(ctx context.Context, teamID string) ([]models.TeamMember, error)
}

type departmentAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DepartmentService implements department and team management.
type DepartmentService struct {
	repo      departmentRepository
	audits    departmentAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs a DepartmentService instance.
func NewDepartmentService(repo departmentRepository, audits departmentAuditRepository, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DepartmentService{repo: repo, audits: audits, validator: validate, logger: logger}
}

// Get returns a department by id.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	dept, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return dept, nil
}

// List returns departments.
func (s *DepartmentService) List(ctx context.Context, includeInactive bool) ([]models.Department, error) {
	depts, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return depts, nil
}

// Create inserts a new department.
func (s *DepartmentService) Create(ctx context.Context, actorID string, req models.CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	dept := &models.Department{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, dept); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a department with this name or code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	s.audit(ctx, actorID, dept.ID)
	return dept, nil
}

// Update applies changes to a department.
func (s *DepartmentService) Update(ctx context.Context, actorID, id string, req models.UpdateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	dept, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		dept.Name = *req.Name
	}
	if req.Code != nil {
		dept.Code = *req.Code
	}
	if req.Description != nil {
		dept.Description = req.Description
	}
	if err := s.repo.Update(ctx, dept); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a department with this name or code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	s.audit(ctx, actorID, dept.ID)
	return dept, nil
}

// Delete soft-deletes a department.
func (s *DepartmentService) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	s.audit(ctx, actorID, id)
	return nil
}

// Summaries returns per-department headcounts.
func (s *DepartmentService) Summaries(ctx context.Context) ([]models.DepartmentSummary, error) {
	rows, err := s.repo.Summaries(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department summaries")
	}
	return rows, nil
}

// ListTeams returns active teams, optionally scoped to one department.
func (s *DepartmentService) ListTeams(ctx context.Context, departmentID string) ([]models.Team, error) {
	teams, err := s.repo.ListTeams(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teams")
	}
	return teams, nil
}

// GetTeam returns a team by id.
func (s *DepartmentService) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	team, err := s.repo.FindTeamByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	return team, nil
}

// CreateTeam inserts a new team.
func (s *DepartmentService) CreateTeam(ctx context.Context, actorID string, req models.CreateTeamRequest) (*models.Team, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid team payload")
	}
	team := &models.Team{
		Name:         req.Name,
		Code:         req.Code,
		DepartmentID: req.DepartmentID,
		LeaderID:     req.LeaderID,
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a team with this name or code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create team")
	}
	s.audit(ctx, actorID, team.ID)
	return team, nil
}

// UpdateTeam applies changes to a team.
func (s *DepartmentService) UpdateTeam(ctx context.Context, actorID, id string, req models.UpdateTeamRequest) (*models.Team, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid team payload")
	}
	team, err := s.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		team.Name = *req.Name
	}
	if req.Code != nil {
		team.Code = *req.Code
	}
	if req.DepartmentID != nil {
		team.DepartmentID = req.DepartmentID
	}
	if req.LeaderID != nil {
		team.LeaderID = req.LeaderID
	}
	if err := s.repo.UpdateTeam(ctx, team); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a team with this name or code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update team")
	}
	s.audit(ctx, actorID, team.ID)
	return team, nil
}

// TeamMembers lists the active members of a team. Team leaders may only look
// at their own team.
func (s *DepartmentService) TeamMembers(ctx context.Context, actor *models.JWTClaims, teamID string) ([]models.TeamMember, error) {
	if actor.Role != models.RoleAdmin {
		if actor.TeamID == nil || *actor.TeamID != teamID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only list members of your own team")
		}
	}
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	members, err := s.repo.TeamMembers(ctx, teamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list team members")
	}
	return members, nil
}

// TeamOverview returns the stats block for the actor's team.
func (s *DepartmentService) TeamOverview(ctx context.Context, actor *models.JWTClaims) (*models.TeamOverview, error) {
	if actor.TeamID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "you are not assigned to a team")
	}
	team, err := s.GetTeam(ctx, *actor.TeamID)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.TeamMembers(ctx, team.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list team members")
	}
	return &models.TeamOverview{Team: *team, Members: members, MemberCount: len(members)}, nil
}

func (s *DepartmentService) audit(ctx context.Context, actorID, resourceID string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDepartmentChange,
		Resource:   "department",
		ResourceID: &resourceID,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record department audit log", zap.Error(err))
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/scoring"
	appErrors "github.com/evaldesk/appraisal-api/pkg/errors"
)

type taskRepository interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter, page, limit int) ([]models.Task, int, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	UpdateStatus(ctx context.Context, id string, status models.TaskStatus, completionDate *time.Time) error
	Deactivate(ctx context.Context, id string) error
}

type taskUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// TaskService implements task management. Tasks carry the weighted criteria
// evaluators score, so the total score is recomputed on every criteria change
// with the same aggregation used for evaluations.
type TaskService struct {
	repo      taskRepository
	users     taskUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTaskService constructs a TaskService instance.
func NewTaskService(repo taskRepository, users taskUserRepository, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TaskService{repo: repo, users: users, validator: validate, logger: logger}
}

// Get returns a task visible to the actor.
func (s *TaskService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if err := s.authorizeVisibility(actor, task); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns tasks scoped to the actor's role.
func (s *TaskService) List(ctx context.Context, actor *models.JWTClaims, filter models.TaskFilter, page, limit int) ([]models.Task, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeamLeader:
		if actor.TeamID != nil {
			filter.TeamID = *actor.TeamID
		} else {
			filter.AssignedTo = actor.UserID
		}
	default:
		filter.AssignedTo = actor.UserID
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	tasks, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	return tasks, &models.Pagination{Page: page, PageSize: limit, TotalCount: total}, nil
}

// Create inserts a task. Team leaders may only assign inside their own team.
func (s *TaskService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeamLeader:
		assignee, err := s.users.FindByID(ctx, req.AssignedTo)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "assignee not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
		}
		if actor.TeamID == nil || assignee.TeamID == nil || *actor.TeamID != *assignee.TeamID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "team leaders may only assign tasks inside their own team")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role to create tasks")
	}

	startDate := time.Now().UTC()
	if req.StartDate != nil {
		startDate = *req.StartDate
	}

	task := &models.Task{
		Title:        req.Title,
		Description:  req.Description,
		AssignedTo:   req.AssignedTo,
		AssignedBy:   actor.UserID,
		TeamID:       req.TeamID,
		DepartmentID: req.DepartmentID,
		Priority:     req.Priority,
		Status:       models.TaskStatusPending,
		Category:     req.Category,
		DueDate:      req.DueDate,
		StartDate:    startDate,
		Criteria:     models.CriteriaList(req.Criteria),
		TotalScore:   scoring.WeightedAverage(req.Criteria),
	}
	if task.TeamID == nil && actor.TeamID != nil {
		task.TeamID = actor.TeamID
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}

	s.audit(ctx, actor.UserID, task.ID)
	return task, nil
}

// Update applies changes to a task and recomputes the total score when the
// criteria change.
func (s *TaskService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}

	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}

	if err := s.authorizeMutation(actor, task); err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.AssignedTo != nil {
		task.AssignedTo = *req.AssignedTo
	}
	if req.TeamID != nil {
		task.TeamID = req.TeamID
	}
	if req.DepartmentID != nil {
		task.DepartmentID = req.DepartmentID
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Status != nil {
		task.Status = *req.Status
		if *req.Status == models.TaskStatusCompleted && task.CompletionDate == nil {
			now := time.Now().UTC()
			task.CompletionDate = &now
		}
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.Criteria != nil {
		task.Criteria = models.CriteriaList(req.Criteria)
		task.TotalScore = scoring.WeightedAverage(req.Criteria)
	}

	if err := s.repo.Update(ctx, task); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task")
	}
	return task, nil
}

// Delete soft-deletes a task.
func (s *TaskService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if err := s.authorizeMutation(actor, task); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}
	return nil
}

func (s *TaskService) authorizeVisibility(actor *models.JWTClaims, task *models.Task) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeamLeader:
		if task.AssignedBy == actor.UserID || task.AssignedTo == actor.UserID {
			return nil
		}
		if actor.TeamID != nil && task.TeamID != nil && *actor.TeamID == *task.TeamID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "task is outside your team")
	default:
		if task.AssignedTo != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "task is not assigned to you")
		}
		return nil
	}
}

func (s *TaskService) authorizeMutation(actor *models.JWTClaims, task *models.Task) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeamLeader:
		if task.AssignedBy == actor.UserID {
			return nil
		}
		if actor.TeamID != nil && task.TeamID != nil && *actor.TeamID == *task.TeamID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "task is outside your team")
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient role to modify tasks")
	}
}

func (s *TaskService) audit(ctx context.Context, actorID, taskID string) {
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionTaskCreate,
		Resource:   "task",
		ResourceID: &taskID,
	}); err != nil {
		s.logger.Warn("failed to record task audit log", zap.Error(err))
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/repository"
	"github.com/evaldesk/appraisal-api/internal/scoring"
	appErrors "github.com/evaldesk/appraisal-api/pkg/errors"
)

type evaluationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
	FindActive(ctx context.Context, taskID, evaluatorID string, evaluationType models.EvaluationType) (*models.Evaluation, error)
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, error)
	ListForSubject(ctx context.Context, evaluateeID string) ([]models.Evaluation, error)
	Create(ctx context.Context, evaluation *models.Evaluation) error
	UpdateCriteria(ctx context.Context, id string, criteria models.CriteriaList, overallScore int) error
	SetReview(ctx context.Context, id string, status models.EvaluationStatus, reviewedBy string, reviewDate time.Time, reviewComments string) error
	Deactivate(ctx context.Context, id string) error
	SubjectResults(ctx context.Context, start, end *time.Time) ([]models.SubjectRow, error)
}

type evaluationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	TeamMemberIDs(ctx context.Context, teamID string) ([]string, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type evaluationTaskRepository interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
}

// EvaluationService implements the evaluation lifecycle: creation with
// role/team authorization and duplicate prevention, review transitions, and
// the composite subject result view.
type EvaluationService struct {
	repo      evaluationRepository
	users     evaluationUserRepository
	tasks     evaluationTaskRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEvaluationService constructs an EvaluationService instance.
func NewEvaluationService(repo evaluationRepository, users evaluationUserRepository, tasks evaluationTaskRepository, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EvaluationService{repo: repo, users: users, tasks: tasks, validator: validate, logger: logger}
}

// Create validates, authorizes and inserts a new evaluation. Nothing is
// persisted unless every check passes.
func (s *EvaluationService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateEvaluationRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}
	if !req.EvaluationType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown evaluation type %q", req.EvaluationType))
	}
	if req.Period.StartDate.After(req.Period.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period start must not be after period end")
	}

	if err := s.authorizeCreation(ctx, actor, req.EvaluateeID, req.EvaluationType); err != nil {
		return nil, err
	}

	if req.TaskID != nil {
		if _, err := s.tasks.FindByID(ctx, *req.TaskID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
		}
		if _, err := s.repo.FindActive(ctx, *req.TaskID, actor.UserID, req.EvaluationType); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active evaluation of this type already exists for this task")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing evaluations")
		}
	}

	status := req.Status
	if status == "" {
		status = models.EvaluationStatusDraft
	}

	evaluation := &models.Evaluation{
		TaskID:              req.TaskID,
		EvaluatorID:         actor.UserID,
		EvaluateeID:         req.EvaluateeID,
		EvaluationType:      req.EvaluationType,
		PeriodStart:         req.Period.StartDate,
		PeriodEnd:           req.Period.EndDate,
		Criteria:            models.CriteriaList(req.Criteria),
		OverallScore:        scoring.WeightedAverage(req.Criteria),
		Strengths:           req.Strengths,
		AreasForImprovement: req.AreasForImprovement,
		Recommendations:     req.Recommendations,
		Status:              status,
		IsActive:            true,
	}

	if err := s.repo.Create(ctx, evaluation); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active evaluation of this type already exists for this task")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create evaluation")
	}

	if status == models.EvaluationStatusSubmitted {
		s.audit(ctx, actor.UserID, models.AuditActionEvaluationSubmit, evaluation.ID)
	}

	return evaluation, nil
}

// SubmitSelf records a yearly self-evaluation. Ranked items are converted to
// scores and the record is created directly in submitted state.
func (s *EvaluationService) SubmitSelf(ctx context.Context, actor *models.JWTClaims, req models.SelfSubmissionRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid self evaluation payload")
	}
	return s.Create(ctx, actor, models.CreateEvaluationRequest{
		EvaluateeID:    actor.UserID,
		EvaluationType: models.EvaluationTypeSelf,
		Period:         yearPeriod(req.Year),
		Criteria:       rankedCriteria(req.Items, scoring.FlowSelf),
		Status:         models.EvaluationStatusSubmitted,
	})
}

// SubmitPeer records a yearly peer evaluation using the peer or behavioral
// rank conversion.
func (s *EvaluationService) SubmitPeer(ctx context.Context, actor *models.JWTClaims, req models.PeerSubmissionRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid peer evaluation payload")
	}
	flow := scoring.FlowPeer
	if req.Behavioral {
		flow = scoring.FlowPeerBehavioral
	}
	return s.Create(ctx, actor, models.CreateEvaluationRequest{
		EvaluateeID:    req.EvaluateeID,
		EvaluationType: models.EvaluationTypePeer,
		Period:         yearPeriod(req.Year),
		Criteria:       rankedCriteria(req.Items, flow),
		Status:         models.EvaluationStatusSubmitted,
	})
}

// Get returns an evaluation visible to the actor.
func (s *EvaluationService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Evaluation, error) {
	evaluation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	if err := s.authorizeVisibility(ctx, actor, evaluation); err != nil {
		return nil, err
	}
	return evaluation, nil
}

// List returns evaluations scoped to the actor's role: employees see their
// own, team leaders their team's, admins everything.
func (s *EvaluationService) List(ctx context.Context, actor *models.JWTClaims, filter models.EvaluationFilter) ([]models.Evaluation, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeamLeader:
		if actor.TeamID != nil {
			memberIDs, err := s.users.TeamMemberIDs(ctx, *actor.TeamID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve team members")
			}
			filter.TeamMemberIDs = append(memberIDs, actor.UserID)
		} else {
			filter.ParticipantID = actor.UserID
		}
	default:
		filter.ParticipantID = actor.UserID
	}

	evaluations, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return evaluations, nil
}

// UpdateCriteria replaces criteria on a draft or submitted evaluation owned by
// the actor and recomputes the overall score.
func (s *EvaluationService) UpdateCriteria(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateCriteriaRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid criteria payload")
	}

	evaluation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}

	if evaluation.EvaluatorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the evaluator may edit criteria")
	}
	if evaluation.Status != models.EvaluationStatusDraft && evaluation.Status != models.EvaluationStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("cannot edit an evaluation in status %q", evaluation.Status))
	}

	criteria := models.CriteriaList(req.Criteria)
	overall := scoring.WeightedAverage(req.Criteria)
	if err := s.repo.UpdateCriteria(ctx, id, criteria, overall); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update criteria")
	}

	evaluation.Criteria = criteria
	evaluation.OverallScore = overall
	return evaluation, nil
}

// Review applies the approve/reject transition. Only an admin or the leader of
// the evaluatee's team may review, and only from a reviewable status.
func (s *EvaluationService) Review(ctx context.Context, actor *models.JWTClaims, id string, req models.ReviewEvaluationRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	evaluation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}

	if !evaluation.Status.Reviewable() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("evaluation in status %q cannot be reviewed", evaluation.Status))
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeamLeader:
		evaluatee, err := s.users.FindByID(ctx, evaluation.EvaluateeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluatee not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluatee")
		}
		if actor.TeamID == nil || evaluatee.TeamID == nil || *actor.TeamID != *evaluatee.TeamID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "team leaders may only review their own team")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role to review evaluations")
	}

	reviewDate := time.Now().UTC()
	if err := s.repo.SetReview(ctx, id, req.Status, actor.UserID, reviewDate, req.Comments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}

	s.audit(ctx, actor.UserID, models.AuditActionEvaluationReview, id)

	evaluation.Status = req.Status
	evaluation.ReviewedBy = &actor.UserID
	evaluation.ReviewDate = &reviewDate
	if req.Comments != "" {
		evaluation.ReviewComments = &req.Comments
	}
	return evaluation, nil
}

// Delete soft-deletes an evaluation. Admin only.
func (s *EvaluationService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may delete evaluations")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evaluation")
	}
	return nil
}

// Results computes the composite performance view for one evaluatee from
// their submitted and reviewed evaluations.
func (s *EvaluationService) Results(ctx context.Context, actor *models.JWTClaims, evaluateeID string) (*models.SubjectResult, error) {
	if err := s.authorizeResults(ctx, actor, evaluateeID); err != nil {
		return nil, err
	}

	evaluatee, err := s.users.FindByID(ctx, evaluateeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	evaluations, err := s.repo.ListForSubject(ctx, evaluateeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluations")
	}

	var (
		selfScores       []float64
		peerScores       []float64
		supervisorScores []float64
	)
	for _, evaluation := range evaluations {
		score := float64(evaluation.OverallScore)
		switch evaluation.EvaluationType {
		case models.EvaluationTypeSelf:
			selfScores = append(selfScores, score)
		case models.EvaluationTypePeer:
			peerScores = append(peerScores, score)
		case models.EvaluationTypeSupervisor:
			supervisorScores = append(supervisorScores, score)
		}
	}

	var selfScore *float64
	if len(selfScores) > 0 {
		avg := mean(selfScores)
		selfScore = &avg
	}

	result := &models.SubjectResult{
		EvaluateeID:     evaluateeID,
		EvaluateeName:   evaluatee.FullName(),
		Year:            time.Now().UTC().Year(),
		CompositeScore:  scoring.Composite(selfScore, peerScores, supervisorScores),
		EvaluationCount: len(evaluations),
	}
	if evaluatee.Position != nil {
		result.Position = *evaluatee.Position
	}
	if selfScore != nil {
		result.SelfScore = *selfScore
	}
	if len(peerScores) > 0 {
		result.PeerScore = mean(peerScores)
	}
	if len(supervisorScores) > 0 {
		result.SupervisorScore = mean(supervisorScores)
	}
	return result, nil
}

func (s *EvaluationService) authorizeCreation(ctx context.Context, actor *models.JWTClaims, evaluateeID string, evaluationType models.EvaluationType) error {
	switch evaluationType {
	case models.EvaluationTypeSelf:
		if actor.UserID != evaluateeID {
			return appErrors.Clone(appErrors.ErrForbidden, "self evaluations must target the evaluator")
		}
		return nil

	case models.EvaluationTypePeer:
		if actor.UserID == evaluateeID {
			return appErrors.Clone(appErrors.ErrForbidden, "peer evaluations cannot target the evaluator")
		}
		evaluatee, err := s.users.FindByID(ctx, evaluateeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "evaluatee not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluatee")
		}
		// Team scope is only enforceable when both sides belong to a team.
		if actor.TeamID != nil && evaluatee.TeamID != nil && *actor.TeamID != *evaluatee.TeamID {
			return appErrors.Clone(appErrors.ErrForbidden, "peer evaluations are limited to the same team")
		}
		return nil

	case models.EvaluationTypeSupervisor:
		switch actor.Role {
		case models.RoleAdmin:
			return nil
		case models.RoleTeamLeader:
			evaluatee, err := s.users.FindByID(ctx, evaluateeID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrNotFound, "evaluatee not found")
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluatee")
			}
			if actor.TeamID == nil || evaluatee.TeamID == nil || *actor.TeamID != *evaluatee.TeamID {
				return appErrors.Clone(appErrors.ErrForbidden, "team leaders may only evaluate their own team")
			}
			return nil
		default:
			return appErrors.Clone(appErrors.ErrForbidden, "insufficient role for supervisor evaluations")
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown evaluation type %q", evaluationType))
}

func (s *EvaluationService) authorizeVisibility(ctx context.Context, actor *models.JWTClaims, evaluation *models.Evaluation) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeamLeader:
		if evaluation.EvaluatorID == actor.UserID || evaluation.EvaluateeID == actor.UserID {
			return nil
		}
		if actor.TeamID != nil {
			memberIDs, err := s.users.TeamMemberIDs(ctx, *actor.TeamID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve team members")
			}
			for _, id := range memberIDs {
				if id == evaluation.EvaluatorID || id == evaluation.EvaluateeID {
					return nil
				}
			}
		}
		return appErrors.Clone(appErrors.ErrForbidden, "evaluation is outside your team")
	default:
		if evaluation.EvaluatorID == actor.UserID || evaluation.EvaluateeID == actor.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you are not a participant of this evaluation")
	}
}

func (s *EvaluationService) authorizeResults(ctx context.Context, actor *models.JWTClaims, evaluateeID string) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeamLeader:
		if actor.UserID == evaluateeID {
			return nil
		}
		if actor.TeamID != nil {
			memberIDs, err := s.users.TeamMemberIDs(ctx, *actor.TeamID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve team members")
			}
			for _, id := range memberIDs {
				if id == evaluateeID {
					return nil
				}
			}
		}
		return appErrors.Clone(appErrors.ErrForbidden, "results are outside your team")
	default:
		if actor.UserID != evaluateeID {
			return appErrors.Clone(appErrors.ErrForbidden, "you may only view your own results")
		}
		return nil
	}
}

func (s *EvaluationService) audit(ctx context.Context, userID, action, resourceID string) {
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "evaluation",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record evaluation audit log", zap.Error(err))
	}
}

func rankedCriteria(items []models.RankItem, flow scoring.SubmissionFlow) []models.Criterion {
	criteria := make([]models.Criterion, 0, len(items))
	for _, item := range items {
		score := scoring.RankScore(item.Rank, item.Weight, flow)
		criteria = append(criteria, models.Criterion{
			Criterion: item.Criterion,
			Weight:    item.Weight,
			Score:     &score,
		})
	}
	return criteria
}

func yearPeriod(year int) models.EvaluationPeriod {
	return models.EvaluationPeriod{
		StartDate: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

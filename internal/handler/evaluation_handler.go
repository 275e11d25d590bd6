package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/service"
	appErrors "github.com/evaldesk/appraisal-api/pkg/errors"
	"github.com/evaldesk/appraisal-api/pkg/response"
)

// EvaluationHandler handles evaluation lifecycle endpoints.
type EvaluationHandler struct {
	service *service.EvaluationService
}

// NewEvaluationHandler creates a new evaluation handler.
func NewEvaluationHandler(svc *service.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{service: svc}
}

// Create godoc
// @Summary Create evaluation
// @Description Create an evaluation in draft or submitted status
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body models.CreateEvaluationRequest true "Evaluation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /evaluations [post]
func (h *EvaluationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}

	evaluation, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, evaluation)
}

// List godoc
// @Summary List evaluations
// @Description List evaluations visible to the caller
// @Tags Evaluations
// @Produce json
// @Param type query string false "Evaluation type"
// @Param status query string false "Status filter"
// @Param evaluatee_id query string false "Evaluatee filter"
// @Param evaluator_id query string false "Evaluator filter"
// @Param task_id query string false "Task filter"
// @Success 200 {object} response.Envelope
// @Router /evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.EvaluationFilter{
		EvaluationType: models.EvaluationType(c.Query("type")),
		Status:         models.EvaluationStatus(c.Query("status")),
		EvaluateeID:    c.Query("evaluatee_id"),
		EvaluatorID:    c.Query("evaluator_id"),
		TaskID:         c.Query("task_id"),
	}

	evaluations, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, evaluations, nil)
}

// Get godoc
// @Summary Get evaluation
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evaluations/{id} [get]
func (h *EvaluationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	evaluation, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, evaluation, nil)
}

// UpdateCriteria godoc
// @Summary Update evaluation criteria
// @Description Replace criteria scores while the evaluation is editable
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param id path string true "Evaluation ID"
// @Param payload body models.UpdateCriteriaRequest true "Criteria payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /evaluations/{id} [put]
func (h *EvaluationHandler) UpdateCriteria(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateCriteriaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid criteria payload"))
		return
	}

	evaluation, err := h.service.UpdateCriteria(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Review godoc
// @Summary Review evaluation
// @Description Approve or reject a submitted evaluation
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param id path string true "Evaluation ID"
// @Param payload body models.ReviewEvaluationRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /evaluations/{id}/approve [post]
func (h *EvaluationHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ReviewEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	evaluation, err := h.service.Review(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Delete godoc
// @Summary Delete evaluation
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /evaluations/{id} [delete]
func (h *EvaluationHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// SubmitSelf godoc
// @Summary Submit self evaluation
// @Description Submit ranked self-appraisal items for a year
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body models.SelfSubmissionRequest true "Self submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /evaluations/self [post]
func (h *EvaluationHandler) SubmitSelf(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SelfSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	evaluation, err := h.service.SubmitSelf(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, evaluation)
}

// SubmitPeer godoc
// @Summary Submit peer evaluation
// @Description Submit ranked peer-appraisal items for a colleague
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body models.PeerSubmissionRequest true "Peer submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /evaluations/peer [post]
func (h *EvaluationHandler) SubmitPeer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.PeerSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	evaluation, err := h.service.SubmitPeer(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, evaluation)
}

// Results godoc
// @Summary Composite results for a subject
// @Description Return the weighted composite score for one evaluatee
// @Tags Evaluations
// @Produce json
// @Param userID path string true "Evaluatee ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evaluations/results/{userID} [get]
func (h *EvaluationHandler) Results(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.service.Results(c.Request.Context(), claims, c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

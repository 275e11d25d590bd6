package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/service"
	appErrors "github.com/evaldesk/appraisal-api/pkg/errors"
	"github.com/evaldesk/appraisal-api/pkg/response"
)

// DepartmentHandler handles department and team endpoints.
type DepartmentHandler struct {
	service *service.DepartmentService
}

// NewDepartmentHandler creates a new department handler.
func NewDepartmentHandler(svc *service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{service: svc}
}

// List godoc
// @Summary List departments
// @Tags Departments
// @Produce json
// @Param include_inactive query bool false "Include inactive departments"
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.DefaultQuery("include_inactive", "false"))

	departments, err := h.service.List(c.Request.Context(), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, departments, nil)
}

// Get godoc
// @Summary Get department
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /departments/{id} [get]
func (h *DepartmentHandler) Get(c *gin.Context) {
	department, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, department, nil)
}

// Create godoc
// @Summary Create department
// @Tags Departments
// @Accept json
// @Produce json
// @Param payload body models.CreateDepartmentRequest true "Department payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /departments [post]
func (h *DepartmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid department payload"))
		return
	}

	department, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, department)
}

// Update godoc
// @Summary Update department
// @Tags Departments
// @Accept json
// @Produce json
// @Param id path string true "Department ID"
// @Param payload body models.UpdateDepartmentRequest true "Department payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /departments/{id} [put]
func (h *DepartmentHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid department payload"))
		return
	}

	department, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, department, nil)
}

// Delete godoc
// @Summary Delete department
// @Tags Departments
// @Produce json
// @Param id path string true "Department ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /departments/{id} [delete]
func (h *DepartmentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// TeamHandler handles team endpoints.
type TeamHandler struct {
	service *service.DepartmentService
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(svc *service.DepartmentService) *TeamHandler {
	return &TeamHandler{service: svc}
}

// List godoc
// @Summary List teams
// @Tags Teams
// @Produce json
// @Param department_id query string false "Department filter"
// @Success 200 {object} response.Envelope
// @Router /teams [get]
func (h *TeamHandler) List(c *gin.Context) {
	teams, err := h.service.ListTeams(c.Request.Context(), c.Query("department_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, teams, nil)
}

// Create godoc
// @Summary Create team
// @Tags Teams
// @Accept json
// @Produce json
// @Param payload body models.CreateTeamRequest true "Team payload"
// @Success 201 {object} response.Envelope
// @Router /teams [post]
func (h *TeamHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid team payload"))
		return
	}

	team, err := h.service.CreateTeam(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, team)
}

// Update godoc
// @Summary Update team
// @Tags Teams
// @Accept json
// @Produce json
// @Param id path string true "Team ID"
// @Param payload body models.UpdateTeamRequest true "Team payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teams/{id} [put]
func (h *TeamHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid team payload"))
		return
	}

	team, err := h.service.UpdateTeam(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, team, nil)
}

// Members godoc
// @Summary List team members
// @Description List members of a team. Team leaders may only view their own team.
// @Tags Teams
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teams/{id}/members [get]
func (h *TeamHandler) Members(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	members, err := h.service.TeamMembers(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, members, nil)
}

// Overview godoc
// @Summary Own team overview
// @Description Return the caller's team with member statistics
// @Tags Teams
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teams/overview [get]
func (h *TeamHandler) Overview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	overview, err := h.service.TeamOverview(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, overview, nil)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evaldesk/appraisal-api/internal/service"
	"github.com/evaldesk/appraisal-api/pkg/response"
)

// RoleHandler exposes role listing endpoints.
type RoleHandler struct {
	service *service.RoleService
}

// NewRoleHandler creates a new role handler.
func NewRoleHandler(svc *service.RoleService) *RoleHandler {
	return &RoleHandler{service: svc}
}

// List godoc
// @Summary List roles
// @Description List role policies with their current members. Falls back to
// @Description static policies with a degraded flag when the store is down.
// @Tags Roles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{"degraded": result.Degraded}
	response.JSON(c, http.StatusOK, result.Roles, nil, meta)
}

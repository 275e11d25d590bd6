package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/evaldesk/appraisal-api/internal/middleware"
	"github.com/evaldesk/appraisal-api/internal/models"
)

// claimsFromContext returns the authenticated caller's claims, or nil when
// the route is reachable without the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

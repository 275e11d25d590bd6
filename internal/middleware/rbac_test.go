package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/evaldesk/appraisal-api/internal/models"
)

func rbacRouter(claims *models.JWTClaims, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRBACAllowsListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}
	router := rbacRouter(claims, string(models.RoleAdmin))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/u2", nil))
	require.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRBACRejectsUnlistedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleEmployee}
	router := rbacRouter(claims, string(models.RoleAdmin))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/u2", nil))
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRBACSelfMatchesOwnResource(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleEmployee}
	router := rbacRouter(claims, string(models.RoleAdmin), SelfRole)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/u1", nil))
	require.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/u2", nil))
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRBACRequiresClaims(t *testing.T) {
	router := rbacRouter(nil, string(models.RoleAdmin))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/u1", nil))
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

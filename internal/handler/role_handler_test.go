package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/service"
)

type roleMemberStore struct {
	rows []models.RoleMemberRow
	err  error
}

func (s *roleMemberStore) ListRoleMembers(ctx context.Context) ([]models.RoleMemberRow, error) {
	return s.rows, s.err
}

func newRoleContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/roles", nil)
	return c, recorder
}

func TestRoleHandlerList(t *testing.T) {
	store := &roleMemberStore{rows: []models.RoleMemberRow{
		{ID: "u1", Name: "Ada Osei", Email: "ada@example.com", IsActive: true, Role: models.RoleAdmin},
	}}
	handler := NewRoleHandler(service.NewRoleService(store, nil, 0, nil))

	c, recorder := newRoleContext()
	handler.List(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data []models.RoleListing   `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, len(models.DefaultRolePolicies()))
	require.Equal(t, false, envelope.Meta["degraded"])
}

func TestRoleHandlerListDegraded(t *testing.T) {
	store := &roleMemberStore{err: errors.New("connection refused")}
	handler := NewRoleHandler(service.NewRoleService(store, nil, 0, nil))

	c, recorder := newRoleContext()
	handler.List(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.Equal(t, true, envelope.Meta["degraded"])
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/evaldesk/appraisal-api/internal/models"
)

const rolesCacheKey = "roles:listing"

type roleUserRepository interface {
	ListRoleMembers(ctx context.Context) ([]models.RoleMemberRow, error)
}

// RoleService serves role listings with their current members. When the
// store is unreachable it degrades to the static policy table instead of
// failing the request.
type RoleService struct {
	users    roleUserRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewRoleService constructs a role service.
func NewRoleService(users roleUserRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *RoleService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{users: users, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// List returns every role with its policy and current members. The result
// carries a degraded flag when member data could not be loaded.
func (s *RoleService) List(ctx context.Context) (*models.RolesResult, error) {
	var cached models.RolesResult
	if hit, _ := s.cache.Get(ctx, rolesCacheKey, &cached); hit {
		return &cached, nil
	}

	rows, err := s.users.ListRoleMembers(ctx)
	if err != nil {
		s.logger.Warn("role member lookup failed, serving static policies", zap.Error(err))
		return degradedRoles(), nil
	}

	membersByRole := make(map[models.UserRole][]models.RoleMember, len(rows))
	for _, row := range rows {
		membersByRole[row.Role] = append(membersByRole[row.Role], models.RoleMember{
			ID:         row.ID,
			Name:       row.Name,
			Email:      row.Email,
			Position:   row.Position,
			EmployeeID: row.EmployeeID,
			IsActive:   row.IsActive,
			Department: row.Department,
			Team:       row.Team,
		})
	}

	policies := models.DefaultRolePolicies()
	listings := make([]models.RoleListing, 0, len(policies))
	for _, policy := range policies {
		members := membersByRole[policy.Role]
		if members == nil {
			members = []models.RoleMember{}
		}
		listings = append(listings, models.RoleListing{RolePolicy: policy, Users: members})
	}

	result := &models.RolesResult{Roles: listings}
	if err := s.cache.Set(ctx, rolesCacheKey, result, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache role listing", zap.Error(err))
	}
	return result, nil
}

// Invalidate drops the cached listing. Called after user mutations.
func (s *RoleService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, rolesCacheKey); err != nil {
		s.logger.Warn("failed to invalidate role listing cache", zap.Error(err))
	}
}

func degradedRoles() *models.RolesResult {
	policies := models.DefaultRolePolicies()
	listings := make([]models.RoleListing, 0, len(policies))
	for _, policy := range policies {
		listings = append(listings, models.RoleListing{RolePolicy: policy, Users: []models.RoleMember{}})
	}
	return &models.RolesResult{Roles: listings, Degraded: true}
}

package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/evaldesk/appraisal-api/internal/handler"
	"github.com/evaldesk/appraisal-api/internal/middleware"
	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/internal/repository"
	"github.com/evaldesk/appraisal-api/internal/service"
	"github.com/evaldesk/appraisal-api/pkg/config"
	"github.com/evaldesk/appraisal-api/pkg/logger"
	corsmiddleware "github.com/evaldesk/appraisal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/evaldesk/appraisal-api/pkg/middleware/requestid"
)

// Handlers bundles every HTTP handler wired into the engine.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Departments *handler.DepartmentHandler
	Teams       *handler.TeamHandler
	Tasks       *handler.TaskHandler
	Evaluations *handler.EvaluationHandler
	Roles       *handler.RoleHandler
	Reports     *handler.ReportHandler
	Metrics     *handler.MetricsHandler
}

// Deps carries the cross-cutting services the router needs beyond handlers.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Auth     *service.AuthService
	Metrics  *service.MetricsService
	AuditLog *repository.UserRepository
}

// New builds the gin engine with the full route table.
func New(deps Deps, h Handlers) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.Config.APIPrefix)

	// Public routes. The download endpoint authenticates with its signed token.
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/reports/download", h.Reports.Download)

	authed := api.Group("", middleware.JWT(deps.Auth))

	auth := authed.Group("/auth")
	{
		auth.POST("/logout", h.Auth.Logout)
		auth.PUT("/password", h.Auth.ChangePassword)
		auth.GET("/me", h.Auth.Me)
	}

	users := authed.Group("/users")
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), h.Users.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), h.Users.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfRole), h.Users.Get)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), h.Users.Update)
		users.PUT("/:id/status", middleware.RequireRoles(models.RoleAdmin), h.Users.SetStatus)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Users.Delete)
	}

	departments := authed.Group("/departments")
	{
		departments.GET("", h.Departments.List)
		departments.GET("/:id", h.Departments.Get)
		departments.POST("", middleware.RequireRoles(models.RoleAdmin), h.Departments.Create)
		departments.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), h.Departments.Update)
		departments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Departments.Delete)
	}

	teams := authed.Group("/teams")
	{
		teams.GET("", h.Teams.List)
		teams.POST("", middleware.RequireRoles(models.RoleAdmin), h.Teams.Create)
		teams.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), h.Teams.Update)
		teams.GET("/:id/members", middleware.RequireRoles(models.RoleAdmin, models.RoleTeamLeader), h.Teams.Members)
		teams.GET("/overview", middleware.RequireRoles(models.RoleAdmin, models.RoleTeamLeader), h.Teams.Overview)
	}

	tasks := authed.Group("/tasks")
	{
		tasks.GET("", h.Tasks.List)
		tasks.GET("/:id", h.Tasks.Get)
		tasks.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeamLeader), h.Tasks.Create)
		tasks.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeamLeader), h.Tasks.Update)
		tasks.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Tasks.Delete)
	}

	evaluations := authed.Group("/evaluations")
	{
		evaluations.POST("", h.Evaluations.Create)
		evaluations.GET("", h.Evaluations.List)
		evaluations.POST("/self", h.Evaluations.SubmitSelf)
		evaluations.POST("/peer", h.Evaluations.SubmitPeer)
		evaluations.GET("/results/:userID", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeamLeader), middleware.SelfRole), h.Evaluations.Results)
		evaluations.GET("/:id", h.Evaluations.Get)
		evaluations.PUT("/:id", h.Evaluations.UpdateCriteria)
		evaluations.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleTeamLeader), h.Evaluations.Review)
		evaluations.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Evaluations.Delete)
	}

	authed.GET("/roles", middleware.RequireRoles(models.RoleAdmin), h.Roles.List)

	reports := authed.Group("/reports", middleware.RequireRoles(models.RoleAdmin, models.RoleTeamLeader))
	{
		reports.GET("", h.Reports.Generate)
		reports.POST("/pdf", middleware.Audit(deps.AuditLog, models.AuditActionReportExport, "report"), h.Reports.CreateJob)
		reports.GET("/jobs", h.Reports.ListJobs)
		reports.GET("/jobs/:id", h.Reports.JobStatus)
	}

	authed.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), h.Metrics.Summary)

	return r
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/evaldesk/appraisal-api/api/swagger"
	"github.com/evaldesk/appraisal-api/internal/handler"
	"github.com/evaldesk/appraisal-api/internal/repository"
	"github.com/evaldesk/appraisal-api/internal/router"
	"github.com/evaldesk/appraisal-api/internal/service"
	"github.com/evaldesk/appraisal-api/pkg/cache"
	"github.com/evaldesk/appraisal-api/pkg/config"
	"github.com/evaldesk/appraisal-api/pkg/database"
	"github.com/evaldesk/appraisal-api/pkg/jobs"
	"github.com/evaldesk/appraisal-api/pkg/logger"
	"github.com/evaldesk/appraisal-api/pkg/storage"
)

// @title Appraisal API
// @version 1.0.0
// @description Role-based staff performance evaluation service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	reportRepo := repository.NewReportRepository(db)

	metrics := service.NewMetricsService()

	var (
		cacheSvc  *service.CacheService
		cacheRepo *repository.CacheRepository
	)
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, true)
	}

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "appraisal-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, userRepo, validate, logr)
	taskSvc := service.NewTaskService(taskRepo, userRepo, validate, logr)
	evaluationSvc := service.NewEvaluationService(evaluationRepo, userRepo, taskRepo, validate, logr)
	roleSvc := service.NewRoleService(userRepo, cacheSvc, cfg.Roles.CacheTTL, logr)

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	exporter := service.NewExportService(nil, nil, store, signer, cfg.APIPrefix, logr)
	reportSvc := service.NewReportService(reportRepo, evaluationRepo, departmentRepo, userRepo, cacheSvc, store, signer, service.ReportServiceConfig{
		CacheTTL: cfg.Reports.CacheTTL,
		FileTTL:  cfg.Reports.SignedURLTTL,
	}, logr)
	exporter.SetReports(reportSvc)

	worker := service.NewReportWorker(reportRepo, exporter, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		OnDiscard:  worker.OnExhausted,
		Logger:     logr,
	})
	queue.Start(ctx)
	reportSvc.SetQueue(queue)

	if err := reportSvc.RecoverPendingJobs(ctx); err != nil {
		logr.Sugar().Warnw("failed to recover pending report jobs", "error", err)
	}
	reportSvc.StartCleanup(ctx, time.Hour)

	handlers := router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc, userSvc),
		Users:       handler.NewUserHandler(userSvc, roleSvc),
		Departments: handler.NewDepartmentHandler(departmentSvc),
		Teams:       handler.NewTeamHandler(departmentSvc),
		Tasks:       handler.NewTaskHandler(taskSvc),
		Evaluations: handler.NewEvaluationHandler(evaluationSvc),
		Roles:       handler.NewRoleHandler(roleSvc),
		Reports:     handler.NewReportHandler(reportSvc),
		Metrics:     handler.NewMetricsHandler(metrics, db, cacheRepo),
	}

	engine := router.New(router.Deps{
		Config:   cfg,
		Logger:   logr,
		Auth:     authSvc,
		Metrics:  metrics,
		AuditLog: userRepo,
	}, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	queue.Stop()
}

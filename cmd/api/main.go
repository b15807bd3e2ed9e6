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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edukita/lms-api/api/swagger"
	"github.com/edukita/lms-api/internal/handler"
	"github.com/edukita/lms-api/internal/middleware"
	"github.com/edukita/lms-api/internal/models"
	"github.com/edukita/lms-api/internal/repository"
	"github.com/edukita/lms-api/internal/scheduler"
	"github.com/edukita/lms-api/internal/service"
	"github.com/edukita/lms-api/pkg/config"
	"github.com/edukita/lms-api/pkg/database"
	"github.com/edukita/lms-api/pkg/export"
	"github.com/edukita/lms-api/pkg/logger"
	"github.com/edukita/lms-api/pkg/mailer"
	corsmiddleware "github.com/edukita/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edukita/lms-api/pkg/middleware/requestid"
	"github.com/edukita/lms-api/pkg/storage"

	"github.com/edukita/lms-api/pkg/cache"
)

// @title Edukita LMS API
// @version 1.0.0
// @description Learning management backend with scheduled program unlocks
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	programRepo := repository.NewProgramRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	unlockRepo := repository.NewUnlockRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)

	metricsSvc := service.NewMetricsService()

	var mail mailer.Mailer
	if cfg.Email.Enabled && cfg.Email.SendgridAPIKey != "" {
		mail = mailer.NewSendgrid(cfg.Email.SendgridAPIKey, cfg.Email.FromName, cfg.Email.FromAddress)
	} else {
		mail = mailer.NewLog(logr)
	}

	notificationSvc := service.NewNotificationService(notificationRepo, mail, service.NotificationConfig{
		Workers:    cfg.Email.WorkerConcurrency,
		MaxRetries: cfg.Email.WorkerRetries,
	}, logr)

	unlockSvc := service.NewUnlockService(unlockRepo, enrollmentRepo, notificationSvc, metricsSvc, logr)

	var programSvc *service.ProgramService
	if redisClient != nil && cfg.Catalog.CacheEnabled {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		programSvc = service.NewProgramService(programRepo, courseRepo, cacheRepo, cfg.Catalog.CacheTTL, validate, logr)
	} else {
		programSvc = service.NewProgramService(programRepo, courseRepo, nil, cfg.Catalog.CacheTTL, validate, logr)
	}

	courseSvc := service.NewCourseService(courseRepo, chapterRepo, programRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, programRepo, courseRepo, userRepo, unlockSvc, notificationSvc, validate, logr)
	progressSvc := service.NewProgressService(progressRepo, chapterRepo, validate, logr)

	signer := storage.NewSignedURLSigner(cfg.Verification.SignedURLSecret, cfg.Verification.SignedURLTTL)
	verificationSvc := service.NewVerificationService(verificationRepo, userRepo, signer, notificationSvc, validate, logr)

	certificateSvc := service.NewCertificateService(enrollmentRepo, export.NewCertificateRenderer(), cfg.Certificates.Issuer, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "edukita-lms",
	})

	authHandler := handler.NewAuthHandler(authSvc)
	programHandler := handler.NewProgramHandler(programSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	progressHandler := handler.NewProgressHandler(progressSvc)
	verificationHandler := handler.NewVerificationHandler(verificationSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc, enrollmentSvc)
	unlockHandler := handler.NewUnlockHandler(unlockSvc, cfg.Unlock.CronSecret)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// The cron trigger authenticates with its own shared secret, not a JWT.
	api.GET("/cron/unlock-check", unlockHandler.CronCheck)

	api.GET("/programs", middleware.OptionalJWT(authSvc), programHandler.List)
	api.GET("/programs/:id", middleware.OptionalJWT(authSvc), programHandler.Get)

	authed := api.Group("", middleware.JWT(authSvc))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/courses", courseHandler.List)
		authed.GET("/courses/:id", courseHandler.Get)
		authed.GET("/courses/:id/chapters", courseHandler.ListChapters)

		authed.GET("/enrollments", enrollmentHandler.List)
		authed.GET("/enrollments/:id", enrollmentHandler.Get)
		authed.POST("/enrollments", enrollmentHandler.Create)
		authed.GET("/enrollments/:id/certificate", certificateHandler.Download)

		authed.GET("/notifications", notificationHandler.List)
		authed.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
		authed.POST("/notifications/read-all", notificationHandler.MarkAllRead)

		authed.PUT("/progress/chapters/:chapterId", progressHandler.Update)
		authed.GET("/progress/courses/:courseId", progressHandler.CourseSummary)

		authed.GET("/verifications", verificationHandler.List)
		authed.POST("/verifications", verificationHandler.Submit)
		authed.GET("/verifications/:id/document", verificationHandler.DocumentAccess)
	}

	staff := api.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleStaff))
	{
		staff.POST("/programs", programHandler.Create)
		staff.PUT("/programs/:id", programHandler.Update)

		staff.POST("/courses", courseHandler.Create)
		staff.PUT("/courses/:id", courseHandler.Update)
		staff.POST("/courses/:id/assign", courseHandler.Assign)
		staff.PATCH("/courses/:id/published", courseHandler.SetPublished)
		staff.POST("/courses/:id/chapters", courseHandler.AddChapter)
		staff.DELETE("/courses/:id/chapters/:chapterId", courseHandler.RemoveChapter)

		staff.POST("/enrollments/:id/withdraw", enrollmentHandler.Withdraw)
		staff.POST("/enrollments/:id/complete", enrollmentHandler.Complete)

		staff.POST("/verifications/:id/review", verificationHandler.Review)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/unlock", unlockHandler.ManualUnlock)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.StartWorkers(ctx)
	defer notificationSvc.StopWorkers()

	var unlockScheduler *scheduler.Scheduler
	if cfg.Unlock.CronEnabled {
		unlockScheduler = scheduler.New(unlockSvc, logr)
		if err := unlockScheduler.Start(cfg.Unlock.CronSchedule); err != nil {
			logr.Sugar().Fatalw("failed to start unlock scheduler", "error", err)
		}
		defer unlockScheduler.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

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
	"go.uber.org/zap"

	_ "github.com/noah-isme/dokumen-api/api/swagger"
	"github.com/noah-isme/dokumen-api/internal/handler"
	internalmiddleware "github.com/noah-isme/dokumen-api/internal/middleware"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/internal/repository"
	"github.com/noah-isme/dokumen-api/internal/service"
	"github.com/noah-isme/dokumen-api/pkg/cache"
	"github.com/noah-isme/dokumen-api/pkg/config"
	"github.com/noah-isme/dokumen-api/pkg/database"
	"github.com/noah-isme/dokumen-api/pkg/events"
	"github.com/noah-isme/dokumen-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dokumen-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dokumen-api/pkg/middleware/requestid"
	"github.com/noah-isme/dokumen-api/pkg/resilience"
	"github.com/noah-isme/dokumen-api/pkg/storage"
)

// @title Dokumen API
// @version 1.0.0
// @description Personal document vault for KTP, SIM, STNK and passports with expiry reminders
// @BasePath /api/v1
// @schemes http https

type handlers struct {
	auth          *handler.AuthHandler
	users         *handler.UserHandler
	documents     *handler.DocumentHandler
	sessions      *handler.SessionHandler
	notifications *handler.NotificationHandler
	reminders     *handler.ReminderHandler
	metrics       *handler.MetricsHandler
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, db.DB); err != nil {
			logr.Sugar().Fatalw("migrations failed", "error", err)
		}
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, profile cache disabled", "error", err)
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Redis.TTL, logr, cacheRepo != nil)

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logr.Sugar().Fatalw("object store init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		nats, err := events.NewNATSPublisher(events.NATSOptions{
			URL:           cfg.Events.NATSURL,
			SubjectPrefix: cfg.Events.SubjectPrefix,
			Source:        cfg.Events.Source,
			Executor:      resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, BreakerEnabled: true}, logr),
			Logger:        logr,
		})
		if err != nil {
			logr.Sugar().Warnw("nats unavailable, events disabled", "error", err)
		} else {
			publisher = nats
		}
	}
	defer publisher.Close()

	templates, err := service.LoadFieldTemplates(nil)
	if err != nil {
		logr.Sugar().Fatalw("field templates invalid", "error", err)
	}
	classifierExec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.Classifier.RetryMaxAttempts,
		BreakerEnabled:      cfg.Classifier.BreakerEnabled,
		BreakerMinRequests:  cfg.Classifier.BreakerMinRequests,
		BreakerFailureRatio: cfg.Classifier.BreakerFailureRatio,
		BreakerOpenTimeout:  cfg.Classifier.BreakerOpenTimeout,
	}, logr)
	classifier := service.NewDocumentClassifier(cfg.Classifier.Mode, templates, classifierExec, logr)

	validate := validator.New()
	rules := service.NewUploadRules(cfg.Upload)

	documentRepo := repository.NewDocumentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	userSvc := service.NewUserService(userRepo, cacheSvc, cfg.Redis.TTL, validate, logr)
	authSvc := service.NewAuthService(userSvc, cfg.Auth, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, publisher, metricsSvc, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, objects, signer, classifier, metricsSvc, validate, logr, service.DocumentServiceConfig{
		Rules:     rules,
		APIPrefix: cfg.APIPrefix,
	})
	simulator := service.NewProcessingSimulator(classifier, cfg.Processing.StageDelay, metricsSvc, logr)
	sessionSvc := service.NewSessionService(documentSvc, notificationSvc, simulator, publisher, metricsSvc, validate, logr, service.SessionServiceConfig{
		Rules:      rules,
		Store:      service.DocumentStoreOptions{ProgressTick: cfg.Upload.ProgressTick, ProgressStep: cfg.Upload.ProgressStep},
		TTL:        cfg.Processing.SessionTTL,
		Workers:    cfg.Processing.Workers,
		MaxRetries: cfg.Processing.Retries,
	})
	scheduler := service.NewReminderScheduler(documentRepo, notificationSvc, metricsSvc, logr, cfg.Reminder.SweepInterval)
	reportSvc := service.NewReportService(documentRepo, logr)

	sessionSvc.Start(ctx)
	defer sessionSvc.Stop()
	if cfg.Reminder.SweepEnabled {
		scheduler.Start(ctx)
	}

	h := handlers{
		auth:          handler.NewAuthHandler(authSvc, cfg.Env == config.EnvProduction),
		users:         handler.NewUserHandler(userSvc),
		documents:     handler.NewDocumentHandler(documentSvc, rules.MaxFileSize),
		sessions:      handler.NewSessionHandler(sessionSvc, rules.MaxFileSize, rules.MaxFiles),
		notifications: handler.NewNotificationHandler(notificationSvc),
		reminders:     handler.NewReminderHandler(service.NewReminderCalculator(validate), reportSvc, scheduler),
		metrics:       handler.NewMetricsHandler(metricsSvc),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), h, authSvc, cfg.RateLimit)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func registerRoutes(api *gin.RouterGroup, h handlers, authSvc *service.AuthService, rateLimit config.RateLimitConfig) {
	auth := api.Group("/auth")
	auth.GET("/callback", h.auth.Callback)
	auth.GET("/login", h.auth.Login)
	auth.GET("/logout", h.auth.Logout)

	api.GET("/documents/:id/download", h.documents.Download)
	api.GET("/reminders/options", h.reminders.Options)
	api.POST("/reminders/compute", h.reminders.Compute)

	secured := api.Group("")
	secured.Use(internalmiddleware.Auth(authSvc))

	secured.GET("/users/me", h.users.Me)
	secured.PUT("/users/me", h.users.Update)
	secured.DELETE("/users/me", h.users.Delete)

	uploadLimit := internalmiddleware.RateLimit(rateLimit)

	documents := secured.Group("/documents")
	documents.GET("", h.documents.List)
	documents.POST("/upload", uploadLimit, h.documents.Upload)
	documents.GET("/:id", h.documents.Get)
	documents.PUT("/:id", h.documents.Update)
	documents.DELETE("/:id", h.documents.Delete)
	documents.POST("/:id/extract", h.documents.Extract)
	documents.GET("/:id/download-url", h.documents.DownloadURL)

	sessions := secured.Group("/sessions")
	sessions.POST("", h.sessions.Create)
	sessions.GET("/:id", h.sessions.Get)
	sessions.DELETE("/:id", h.sessions.Close)
	sessions.POST("/:id/files", uploadLimit, h.sessions.AddFiles)
	sessions.DELETE("/:id/files", h.sessions.ClearFiles)
	sessions.DELETE("/:id/files/:index", h.sessions.RemoveFile)
	sessions.POST("/:id/confirm", h.sessions.Confirm)
	sessions.POST("/:id/process", h.sessions.Process)
	sessions.POST("/:id/reminders/auto", h.sessions.ApplyAuto)
	sessions.PUT("/:id/extracted/:docId/reminder", h.sessions.SetReminder)
	sessions.POST("/:id/extracted/:docId/promote", h.sessions.Promote)
	sessions.GET("/:id/documents", h.sessions.ListDocuments)
	sessions.PUT("/:id/documents/:docId", h.sessions.UpdateDocument)
	sessions.DELETE("/:id/documents/:docId", h.sessions.DeleteDocument)
	sessions.DELETE("/:id/error", h.sessions.ResetError)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.notifications.List)
	notifications.GET("/settings", h.notifications.GetSettings)
	notifications.PUT("/settings", h.notifications.UpdateSettings)
	notifications.PATCH("/:id/read", h.notifications.MarkAsRead)

	secured.GET("/reminders/schedule", h.reminders.Schedule)
	secured.GET("/reminders/export", h.reminders.Export)

	admin := secured.Group("/admin")
	admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin))
	admin.GET("/metrics", h.metrics.Snapshot)
	admin.POST("/reminders/run", h.reminders.RunSweep)
}

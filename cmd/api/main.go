package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noor-academy/tutoring-api/api/swagger"
	"github.com/noor-academy/tutoring-api/internal/handler"
	"github.com/noor-academy/tutoring-api/internal/middleware"
	"github.com/noor-academy/tutoring-api/internal/recordstore"
	"github.com/noor-academy/tutoring-api/internal/repository"
	"github.com/noor-academy/tutoring-api/internal/service"
	"github.com/noor-academy/tutoring-api/pkg/cache"
	"github.com/noor-academy/tutoring-api/pkg/config"
	"github.com/noor-academy/tutoring-api/pkg/database"
	"github.com/noor-academy/tutoring-api/pkg/jobs"
	"github.com/noor-academy/tutoring-api/pkg/logger"
	corsmiddleware "github.com/noor-academy/tutoring-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noor-academy/tutoring-api/pkg/middleware/requestid"
	"github.com/noor-academy/tutoring-api/pkg/storage"
)

// @title Noor Academy Tutoring API
// @version 0.1.0
// @description Class scheduling, realtime session tracking and performance analytics
// @BasePath /api/v1
// @schemes http

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
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close()

	var store recordstore.Store
	if cfg.Realtime.Backend == "memory" {
		store = recordstore.NewMemory()
	} else {
		store = recordstore.NewRedis(redisClient, cfg.Realtime.KeyPrefix, cfg.Realtime.SubscribeBuffer, logr)
	}

	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, true)
	tokenSvc := service.NewTokenService(cfg.Auth.TokenSecret)

	sessionSvc := service.NewSessionService(store, cfg.Realtime.KeyPrefix, logr)
	analyticsSvc := service.NewAnalyticsService(sessionSvc, studentRepo, cacheSvc, metricsSvc, logr, service.AnalyticsConfig{
		TopPerformers:  cfg.Analytics.TopPerformers,
		NeedsAttention: cfg.Analytics.NeedsAttention,
	})
	watchSvc := service.NewWatchService(store, sessionSvc, cacheSvc, metricsSvc, logr)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	watchQueue := jobs.NewQueue("watch-events", watchSvc.HandleEvent, jobs.QueueConfig{
		Workers: 1,
		Logger:  logr,
	})
	watchQueue.Start(rootCtx)
	watchSvc.SetQueue(watchQueue)

	localStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("report storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(analyticsSvc, localStorage, signer, logr)

	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		reportQueue = jobs.NewQueue("report-exports", exportSvc.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(rootCtx)
		exportSvc.SetQueue(reportQueue)
	}

	sessionHandler := handler.NewSessionHandler(sessionSvc)
	studentHandler := handler.NewStudentHandler(studentRepo)
	teacherHandler := handler.NewTeacherHandler(teacherRepo)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc, metricsSvc)
	reportHandler := handler.NewReportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// The download route authorises itself through the signed token.
	api.GET("/reports/download", reportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(tokenSvc))
	protected.Use(middleware.WatchTeacher(watchSvc))
	{
		protected.GET("/me", teacherHandler.Me)

		protected.POST("/sessions", sessionHandler.Schedule)
		protected.GET("/sessions", sessionHandler.List)
		protected.GET("/sessions/upcoming", sessionHandler.Upcoming)
		protected.GET("/sessions/:id", sessionHandler.Get)
		protected.POST("/sessions/:id/start", sessionHandler.Start)
		protected.POST("/sessions/:id/complete", sessionHandler.Complete)

		protected.GET("/students", studentHandler.List)
		protected.POST("/students", studentHandler.Create)
		protected.GET("/students/:id", studentHandler.Get)
		protected.PUT("/students/:id", studentHandler.Update)
		protected.DELETE("/students/:id", studentHandler.Deactivate)

		protected.GET("/analytics/performance", analyticsHandler.Performance)
		protected.GET("/analytics/system", analyticsHandler.System)
		protected.POST("/analytics/export", reportHandler.Request)
		protected.GET("/analytics/export/:id", reportHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown", "error", err)
	}

	watchSvc.Close()
	watchQueue.Stop()
	if reportQueue != nil {
		reportQueue.Stop()
	}
}

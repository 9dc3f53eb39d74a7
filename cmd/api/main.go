package main

import (
	"context"
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

	_ "github.com/polyshare/polyshare-api/api/swagger"
	"github.com/polyshare/polyshare-api/internal/handler"
	"github.com/polyshare/polyshare-api/internal/middleware"
	"github.com/polyshare/polyshare-api/internal/models"
	"github.com/polyshare/polyshare-api/internal/repository"
	"github.com/polyshare/polyshare-api/internal/service"
	"github.com/polyshare/polyshare-api/pkg/cache"
	"github.com/polyshare/polyshare-api/pkg/config"
	"github.com/polyshare/polyshare-api/pkg/database"
	"github.com/polyshare/polyshare-api/pkg/export"
	"github.com/polyshare/polyshare-api/pkg/jobs"
	"github.com/polyshare/polyshare-api/pkg/logger"
	corsmiddleware "github.com/polyshare/polyshare-api/pkg/middleware/cors"
	reqidmiddleware "github.com/polyshare/polyshare-api/pkg/middleware/requestid"
	"github.com/polyshare/polyshare-api/pkg/storage"
)

// @title PolyShare API
// @version 1.0.0
// @description Document sharing backend for university students
// @BasePath /api
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
		redisClient = nil
	}

	uploadStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}
	exportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}

	uploadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, catalogRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	catalogSvc := service.NewCatalogService(catalogRepo, cacheRepo, logr, service.CatalogConfig{
		CacheEnabled: cfg.Catalog.CacheEnabled,
		CacheTTL:     cfg.Catalog.CacheTTL,
	})
	documentSvc := service.NewDocumentService(documentRepo, userRepo, catalogRepo, uploadStorage, uploadSigner, metricsSvc, validate, logr, service.DocumentConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
		UploadReward:     cfg.Karma.UploadReward,
		DownloadCost:     cfg.Karma.DownloadCost,
		DeletionPenalty:  cfg.Karma.DeletionPenalty,
	})
	exportSvc := service.NewExportService(documentRepo, userRepo, exportStorage, reportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc, metricsSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

	metadata := api.Group("/metadata")
	metadata.GET("/universities", catalogHandler.Universities)
	metadata.GET("/faculties", catalogHandler.Faculties)
	metadata.GET("/majors", catalogHandler.Majors)
	metadata.GET("/courses", catalogHandler.Courses)

	documents := api.Group("/documents")
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.GET("/file/:token", documentHandler.File)

	authedDocuments := documents.Group("", middleware.JWT(authSvc))
	authedDocuments.POST("", documentHandler.Upload)
	authedDocuments.GET("/my", documentHandler.Mine)
	authedDocuments.POST("/:id/download", documentHandler.Download)
	authedDocuments.DELETE("/:id", documentHandler.Delete)

	reports := api.Group("/reports")
	reports.GET("/export/:token", reportHandler.Export)

	adminReports := reports.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	adminReports.POST("", reportHandler.Create)
	adminReports.GET("/:id", reportHandler.Status)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reports.Enabled {
		reportQueue.Start(ctx)
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
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

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if cfg.Reports.Enabled {
		reportQueue.Stop()
	}
	logr.Sugar().Infow("server stopped")
}

// @title           CRM Pipeline API
// @version         1.0
// @description     Deal pipeline board, audit log, schedules, files and comments for the sales team

// @host      localhost:8000
// @BasePath  /api/pipeline

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	commonlogger "github.com/OrangesCloud/wealist-advanced-go-pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	_ "crm-pipeline-api/docs" // Swagger docs import

	"crm-pipeline-api/internal/client"
	"crm-pipeline-api/internal/config"
	"crm-pipeline-api/internal/database"
	"crm-pipeline-api/internal/job"
	"crm-pipeline-api/internal/live"
	"crm-pipeline-api/internal/metrics"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/router"
	"crm-pipeline-api/internal/service"
)

const (
	dbConnectTimeout = 2 * time.Minute
	dbStatsInterval  = 15 * time.Second
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := commonlogger.New(commonlogger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		OutputPath: cfg.Logger.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = commonlogger.WithService(logger, "crm-pipeline-api")
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting CRM Pipeline API",
		zap.String("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("base_path", cfg.Server.BasePath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewWithLogger(logger)

	connectCtx, cancelConnect := context.WithTimeout(ctx, dbConnectTimeout)
	db, err := database.Connect(connectCtx, database.Config{
		DSN:                cfg.Database.GetDSN(),
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	}, 5*time.Second, logger)
	cancelConnect()
	if err != nil {
		logger.Fatal("Database unavailable", zap.Error(err))
	}
	logger.Info("Database connected successfully")
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}()

	if err := database.MigrateWithRetry(ctx, db, logger, 3); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	if err := database.RegisterMetricsCallbacks(db, m); err != nil {
		logger.Warn("Failed to register query metrics", zap.Error(err))
	}
	database.StartDBStatsCollector(ctx, db, m, dbStatsInterval)

	redisClient := initRedis(cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var s3Client service.S3Client
	if cfg.S3.Bucket != "" && cfg.S3.Region != "" {
		c, err := client.NewS3Client(ctx, &cfg.S3)
		if err != nil {
			logger.Warn("Failed to initialize S3 client, file uploads disabled", zap.Error(err))
		} else {
			s3Client = c
			logger.Info("S3 client initialized",
				zap.String("bucket", cfg.S3.Bucket),
				zap.String("region", cfg.S3.Region))
		}
	} else {
		logger.Warn("S3 configuration incomplete, file uploads disabled")
	}

	notifier := client.NewNoOpNotificationClient()
	if cfg.Notification.Enabled() {
		notifier = client.NewNotificationClient(cfg.Notification.BaseURL, cfg.Notification.APIKey,
			cfg.Notification.Timeout, logger, m)
		logger.Info("Notification client initialized", zap.String("base_url", cfg.Notification.BaseURL))
	}

	hub := live.NewHub(cfg.Server.AllowedOrigins, logger)
	go hub.Run(ctx)

	collector := metrics.NewBusinessMetricsCollector(db, m, logger)
	collector.Start()
	defer collector.Stop()

	scheduler := job.NewScheduler(logger)
	recurrence := job.NewRecurrenceJob(repository.NewScheduleRepository(db), m, cfg.Jobs.RecurrenceHorizonDays, logger)
	if err := scheduler.Add("schedule-recurrence", cfg.Jobs.RecurrenceSpec, recurrence.Run); err != nil {
		logger.Fatal("Invalid recurrence job schedule", zap.Error(err))
	}
	scheduler.Start()

	r := router.Setup(router.Config{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTSecret:      cfg.JWT.Secret,
		BasePath:       cfg.Server.BasePath,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m,
		S3Client:       s3Client,
		Notifier:       notifier,
		Hub:            hub,
		UploadLimits: service.UploadLimits{
			MaxFileSize:       cfg.Upload.MaxFileSize,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
		},
		BoardCacheTTL: cfg.Board.CacheTTL,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("CRM Pipeline API started",
			zap.String("address", srv.Addr),
			zap.String("swagger", fmt.Sprintf("http://localhost:%s%s/swagger/index.html", cfg.Server.Port, cfg.Server.BasePath)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("Recurrence job did not finish before shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

// initRedis returns nil when Redis is not configured. A failed first ping is
// only logged; the client reconnects on its own and the board cache treats
// errors as misses.
func initRedis(cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if cfg.URL == "" && cfg.Addr == "" {
		logger.Info("Redis not configured, board cache disabled")
		return nil
	}
	rc, err := database.NewRedis(cfg, logger)
	if err != nil {
		if rc == nil {
			logger.Warn("Invalid Redis configuration, board cache disabled", zap.Error(err))
			return nil
		}
		logger.Warn("Redis not reachable yet, board cache will miss until it is", zap.Error(err))
	}
	return rc
}

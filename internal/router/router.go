package router

import (
	"context"
	"time"

	"github.com/OrangesCloud/wealist-advanced-go-pkg/health"
	commonmw "github.com/OrangesCloud/wealist-advanced-go-pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"crm-pipeline-api/internal/client"
	"crm-pipeline-api/internal/handler"
	"crm-pipeline-api/internal/live"
	"crm-pipeline-api/internal/metrics"
	"crm-pipeline-api/internal/middleware"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/service"
)

// Config holds everything Setup wires together. Redis, S3Client, Notifier
// and Hub are optional.
type Config struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *zap.Logger
	JWTSecret      string
	BasePath       string
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	S3Client       service.S3Client
	Notifier       client.NotificationClient
	Hub            *live.Hub
	UploadLimits   service.UploadLimits
	BoardCacheTTL  time.Duration
}

// Setup builds the gin engine with all routes
func Setup(cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = client.NewNoOpNotificationClient()
	}
	if cfg.Hub == nil {
		// The engine owns a hub nobody else publishes to; it lives as long as the process.
		cfg.Hub = live.NewHub(cfg.AllowedOrigins, logger)
		go cfg.Hub.Run(context.Background())
	}

	r := gin.New()
	r.Use(commonmw.Recovery(logger))
	r.Use(commonmw.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Repositories
	tx := repository.NewTransactor(cfg.DB)
	dealRepo := repository.NewDealRepository(cfg.DB)
	clientRepo := repository.NewClientRepository(cfg.DB)
	fileRepo := repository.NewDealFileRepository(cfg.DB)
	scheduleRepo := repository.NewScheduleRepository(cfg.DB)
	commentRepo := repository.NewCommentRepository(cfg.DB)
	activityRepo := repository.NewActivityRepository(cfg.DB)
	userRepo := repository.NewUserRepository(cfg.DB)

	// Services
	cache := service.NewBoardCache(cfg.Redis, cfg.BoardCacheTTL, logger)
	activityService := service.NewActivityService(activityRepo, dealRepo, logger)
	dealService := service.NewDealService(dealRepo, clientRepo, fileRepo, scheduleRepo, commentRepo,
		activityService, tx, cfg.S3Client, cfg.Notifier, cache, cfg.Hub, cfg.Metrics, logger)
	exportService := service.NewExportService(dealRepo, logger)
	pipelineService := service.NewPipelineService(dealRepo, activityService, tx, cache, cfg.Hub, cfg.Metrics, logger)
	fileService := service.NewFileService(fileRepo, dealRepo, activityService, tx, cfg.S3Client, cfg.UploadLimits, cfg.Metrics, logger)
	scheduleService := service.NewScheduleService(scheduleRepo, dealRepo, activityService, tx, logger)
	commentService := service.NewCommentService(commentRepo, dealRepo, userRepo, activityService, tx, cfg.Notifier, logger)
	clientService := service.NewClientService(clientRepo, dealRepo, logger)

	// Handlers
	probes := newProbes(cfg.DB, cfg.Redis)
	dealHandler := handler.NewDealHandler(dealService, exportService)
	boardHandler := handler.NewBoardHandler(pipelineService, cfg.Hub, logger)
	fileHandler := handler.NewFileHandler(fileService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService)
	commentHandler := handler.NewCommentHandler(commentService)
	clientHandler := handler.NewClientHandler(clientService)

	metricsHandler := gin.WrapH(promhttp.Handler())

	// Probes and scrape endpoint, no auth
	probes.RegisterRoutes(r)
	r.GET("/metrics", metricsHandler)

	api := r.Group(cfg.BasePath)
	if cfg.BasePath != "" && cfg.BasePath != "/" {
		api.GET("/health", probes.HealthHandler())
		api.GET("/ready", probes.ReadyHandler())
		api.GET("/metrics", metricsHandler)
	}
	api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Browsers cannot set headers on a websocket handshake
	api.GET("/board/ws", middleware.QueryTokenAuth(cfg.JWTSecret), boardHandler.BoardSocket)

	authenticated := api.Group("")
	authenticated.Use(middleware.Auth(cfg.JWTSecret))
	{
		// Board
		authenticated.GET("/board", boardHandler.GetBoard)
		authenticated.POST("/board/move", boardHandler.MoveDeal)
		authenticated.PUT("/board/stages/:stage/order", boardHandler.ReorderStage)

		// Deals (static routes before :dealId)
		authenticated.POST("/deals", dealHandler.CreateDeal)
		authenticated.GET("/deals", dealHandler.ListDeals)
		authenticated.GET("/deals/search", dealHandler.SearchDeals)
		authenticated.GET("/deals/export", dealHandler.ExportDeals)
		authenticated.GET("/deals/:dealId", dealHandler.GetDeal)
		authenticated.PUT("/deals/:dealId", dealHandler.UpdateDeal)
		authenticated.DELETE("/deals/:dealId", dealHandler.DeleteDeal)
		authenticated.GET("/deals/:dealId/activities", dealHandler.GetActivities)
		authenticated.POST("/deals/:dealId/close", boardHandler.CloseDeal)

		// Files
		authenticated.POST("/deals/:dealId/files", fileHandler.UploadFile)
		authenticated.GET("/deals/:dealId/files", fileHandler.ListFiles)
		authenticated.GET("/files/:fileId/versions", fileHandler.GetVersions)
		authenticated.GET("/files/:fileId/download", fileHandler.GetDownloadURL)
		authenticated.DELETE("/files/:fileId", fileHandler.DeleteFile)

		// Schedules
		authenticated.POST("/deals/:dealId/schedules", scheduleHandler.CreateSchedule)
		authenticated.GET("/deals/:dealId/schedules", scheduleHandler.ListDealSchedules)
		authenticated.GET("/schedules", scheduleHandler.ListSchedules)
		authenticated.GET("/schedules/:scheduleId", scheduleHandler.GetSchedule)
		authenticated.PUT("/schedules/:scheduleId", scheduleHandler.UpdateSchedule)
		authenticated.PATCH("/schedules/:scheduleId/status", scheduleHandler.UpdateStatus)
		authenticated.POST("/schedules/:scheduleId/complete", scheduleHandler.CompleteSchedule)
		authenticated.DELETE("/schedules/:scheduleId", scheduleHandler.DeleteSchedule)

		// Comments
		authenticated.POST("/deals/:dealId/comments", commentHandler.AddComment)
		authenticated.GET("/deals/:dealId/comments", commentHandler.ListComments)
		authenticated.PUT("/comments/:commentId", commentHandler.UpdateComment)
		authenticated.DELETE("/comments/:commentId", commentHandler.DeleteComment)

		// Clients
		authenticated.POST("/clients", clientHandler.CreateClient)
		authenticated.GET("/clients", clientHandler.ListClients)
		authenticated.GET("/clients/search", clientHandler.SearchClients)
		authenticated.GET("/clients/:clientId", clientHandler.GetClient)
		authenticated.PUT("/clients/:clientId", clientHandler.UpdateClient)
		authenticated.DELETE("/clients/:clientId", clientHandler.DeleteClient)
	}

	return r
}

// newProbes checks the database on /ready, and Redis when the board cache
// is enabled
func newProbes(db *gorm.DB, rdb *redis.Client) *health.Handler {
	probes := health.NewHandler()
	probes.AddChecker(health.NewDatabaseChecker(db))
	if rdb != nil {
		probes.AddChecker(health.NewRedisChecker(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}
	return probes
}

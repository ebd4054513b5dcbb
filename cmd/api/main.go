package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/api/handlers"
	redisCache "github.com/liaxp/backend/internal/cache/redis"
	"github.com/liaxp/backend/internal/chat"
	"github.com/liaxp/backend/internal/delivery"
	"github.com/liaxp/backend/internal/insights"
	"github.com/liaxp/backend/internal/llm"
	"github.com/liaxp/backend/internal/messages"
	"github.com/liaxp/backend/internal/messaging"
	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/internal/middleware/ratelimit"
	"github.com/liaxp/backend/internal/review"
	"github.com/liaxp/backend/internal/scheduler"
	"github.com/liaxp/backend/internal/storage/sqlite"
	"github.com/liaxp/backend/internal/training"
	"github.com/liaxp/backend/pkg/config"
	appLogger "github.com/liaxp/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting LiaXP API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var hotCache *redisCache.Client
	if cfg.Redis.Enabled {
		hotCache, err = redisCache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.InsightTTL)*time.Minute,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer hotCache.Close()
	}

	var llmClient *llm.Client
	if cfg.LLM.Enabled {
		llmClient = llm.NewClient(
			cfg.LLM.APIKey,
			cfg.LLM.Model,
			cfg.LLM.Temperature,
			cfg.LLM.MaxTokens,
			cfg.LLM.TimeoutSec,
		)
	}

	provider, err := messaging.NewProvider(cfg.WhatsApp)
	if err != nil {
		appLogger.Fatal("Failed to create messaging provider", zap.Error(err))
	}

	var mailer *messaging.Mailer
	if cfg.Email.Enabled {
		mailer = messaging.NewMailer(cfg.Email)
	}

	engine := insights.NewEngine(sqliteClient)
	tracker := training.NewTracker(sqliteClient)

	var trainingCache training.HotCache
	if hotCache != nil {
		trainingCache = hotCache
	}
	orchestrator := training.NewOrchestrator(
		tracker,
		engine,
		sqliteClient,
		trainingCache,
		time.Duration(cfg.Training.SnapshotRetentionDays)*24*time.Hour,
	)

	var polisher messages.Polisher
	if llmClient != nil {
		polisher = llmClient
	}
	var generatorCache messages.HotCache
	if hotCache != nil {
		generatorCache = hotCache
	}
	generator := messages.NewGenerator(sqliteClient, sqliteClient, generatorCache, polisher)

	deliverer := delivery.NewOrchestrator(
		sqliteClient,
		sqliteClient,
		provider,
		time.Duration(cfg.Delivery.SendDelayMs)*time.Millisecond,
	)

	hub := review.NewHub()
	reviewService := review.NewService(sqliteClient, deliverer, hub, cfg.HITL.SendOnApprove)

	messageService := messages.NewService(generator, reviewService, cfg.HITL.ReviewRequired)

	var answerer chat.Answerer
	if llmClient != nil {
		answerer = llmClient
	}
	chatRouter := chat.NewRouter(engine, sqliteClient, sqliteClient, provider, answerer)

	var digest scheduler.Digest
	if mailer != nil {
		digest = mailer
	}
	sched := scheduler.New(sqliteClient, messageService, deliverer, digest, cfg.Email.DigestTo)
	if cfg.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			appLogger.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	trainingHandler := handlers.NewTrainingHandler(orchestrator, tracker)
	messagesHandler := handlers.NewMessagesHandler(messageService, deliverer, sqliteClient)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	chatHandler := handlers.NewChatHandler(sqliteClient)
	insightsHandler := handlers.NewInsightsHandler(engine)
	scheduleHandler := handlers.NewScheduleHandler(sqliteClient)

	var invalidator handlers.CacheInvalidator
	if hotCache != nil {
		invalidator = hotCache
	}
	importHandler := handlers.NewImportHandler(sqliteClient, invalidator)
	webhookHandler := handlers.NewWebhookHandler(chatRouter, provider, sqliteClient, cfg.WhatsApp.Meta.VerifyToken)
	wsHandler := handlers.NewWebSocketHandler(hub)

	api := app.Group("/api/v1")

	api.Post("/training/train", trainingHandler.HandleTrain)
	api.Get("/training/status", trainingHandler.GetStatus)

	api.Post("/messages/generate", messagesHandler.HandleGenerate)
	api.Post("/messages/send", messagesHandler.HandleSend)
	api.Get("/messages/log", messagesHandler.HandleListLog)

	api.Get("/chat/history", chatHandler.GetHistory)

	api.Get("/reviews", reviewHandler.ListReviews)
	api.Get("/reviews/:id", reviewHandler.GetReview)
	api.Post("/reviews/:id/approve", reviewHandler.ApproveReview)
	api.Post("/reviews/:id/edit", reviewHandler.EditReview)
	api.Post("/reviews/:id/reject", reviewHandler.RejectReview)

	api.Get("/insights", insightsHandler.GetInsights)

	api.Post("/data/import", importHandler.HandleImport)

	api.Get("/schedules", scheduleHandler.ListSchedules)
	api.Post("/schedules", scheduleHandler.UpsertSchedule)

	app.Get("/webhook/whatsapp", webhookHandler.VerifyWebhook)
	app.Post("/webhook/whatsapp/:companyID", webhookHandler.ReceiveMessage)

	app.Get("/ws/reviews", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/keyfindings/backend/internal/api/handlers"
	"github.com/keyfindings/backend/internal/bootstrap"
	"github.com/keyfindings/backend/internal/metrics"
	"github.com/keyfindings/backend/internal/middleware/ratelimit"
	"github.com/keyfindings/backend/internal/middleware/security"
	"github.com/keyfindings/backend/internal/middleware/validation"
	"github.com/keyfindings/backend/pkg/config"
	appLogger "github.com/keyfindings/backend/pkg/logger"
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

	appLogger.Info("Starting Key Findings API Server")

	metrics.Init()

	components, err := bootstrap.Build(cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize engine", zap.Error(err))
	}
	defer components.Close()

	retentionCtx, stopRetention := context.WithCancel(context.Background())
	defer stopRetention()
	go components.Store.RunRetention(
		retentionCtx,
		time.Duration(cfg.Cache.CleanupIntervalMinutes)*time.Minute,
		cfg.Cache.RetentionDays,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Server.Environment == "development",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	reportHandler := handlers.NewReportHandler(components.Engine)
	healthHandler := handlers.NewHealthHandler(components.Store)
	wsHandler := handlers.NewWebSocketHandler(components.Engine)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	reports := api.Group("", limiter.Middleware(), validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))
	reportHandler.RegisterRoutes(reports)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))

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
	stopRetention()
	app.Shutdown()
	appLogger.Info("Server stopped")
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/teamlounge/lounge-server/internal/config"
	"github.com/teamlounge/lounge-server/internal/database"
	"github.com/teamlounge/lounge-server/internal/handlers"
	"github.com/teamlounge/lounge-server/internal/identity"
	"github.com/teamlounge/lounge-server/internal/logging"
	"github.com/teamlounge/lounge-server/internal/middleware"
	"github.com/teamlounge/lounge-server/internal/notifications"
	"github.com/teamlounge/lounge-server/internal/routes"
	"github.com/teamlounge/lounge-server/internal/services"
	"github.com/teamlounge/lounge-server/internal/storage"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// A missing salt is fatal: every anon id depends on it, and a changed
	// salt would silently detach members from their content.
	deriver, err := identity.NewDeriver(cfg.AnonIDSalt)
	if err != nil {
		slog.Error("ANON_ID_SALT environment variable is required", "error", err)
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Notifications: AMQP when a broker is configured, log fallback otherwise
	var notifier services.Notifier = notifications.LogNotifier{}
	var publisher *notifications.Publisher
	if cfg.AMQPURL != "" {
		publisher = notifications.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		notifier = publisher
	}

	// Object storage is optional; without it the presign endpoint reports 503
	// and attachment keys are not verified
	var uploader *storage.Uploader
	var imageChecker services.ImageChecker
	if cfg.S3Bucket != "" {
		uploader = storage.NewUploader(cfg)
		imageChecker = uploader
	}

	// Services
	profileService := services.NewProfileService(database.DB)
	authService := services.NewAuthService(database.DB, cfg, profileService, notifier)
	categoryService := services.NewCategoryService(database.DB)
	boardService := services.NewBoardService(database.DB, categoryService, imageChecker)
	moderationService := services.NewModerationService(database.DB, notifier)

	if err := categoryService.SeedDefaults(context.Background()); err != nil {
		slog.Error("category seed failed", "error", err)
		os.Exit(1)
	}

	// One binder per live session, keyed by the sid token claim; idle
	// sessions are evicted once their refresh token can no longer be used
	registry := identity.NewRegistry(deriver, profileService, authService, cfg.ProfileResolveTimeout, cfg.JWTRefreshExpiry)
	registry.StartEviction(cleanupDone)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, registry)
	profileHandler := handlers.NewProfileHandler(profileService, registry)
	boardHandler := handlers.NewBoardHandler(boardService, categoryService)
	moderationHandler := handlers.NewModerationHandler(moderationService)
	adminHandler := handlers.NewAdminHandler(profileService, boardService, categoryService, moderationService)
	uploadHandler := handlers.NewUploadHandler(uploader)
	healthHandler := handlers.NewHealthHandler()

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, registry, authHandler, profileHandler, boardHandler, moderationHandler, adminHandler, uploadHandler, healthHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	pgLogHandler.Stop()
	if publisher != nil {
		publisher.Close()
	}
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

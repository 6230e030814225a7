package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proctor-api/internal/config"
	"github.com/noah-isme/gema-proctor-api/internal/database"
	"github.com/noah-isme/gema-proctor-api/internal/handler"
	"github.com/noah-isme/gema-proctor-api/internal/middleware"
	"github.com/noah-isme/gema-proctor-api/internal/models"
	"github.com/noah-isme/gema-proctor-api/internal/observability"
	"github.com/noah-isme/gema-proctor-api/internal/repository"
	"github.com/noah-isme/gema-proctor-api/internal/router"
	"github.com/noah-isme/gema-proctor-api/internal/service"
	"github.com/noah-isme/gema-proctor-api/pkg/ai"
	cloud "github.com/noah-isme/gema-proctor-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.ProctoringSession{}, &models.ViolationRecord{}, &models.SessionSnapshot{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	var snapshots service.SnapshotStore
	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("snapshot storage disabled")
	} else {
		snapshots = uploader
	}

	classifier := ai.NewClassifier(ai.Options{
		Provider:  cfg.AIProvider,
		Timeout:   cfg.AITimeout,
		Logger:    logger,
		OpenAI:    ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel},
		Anthropic: ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Model: cfg.AnthropicModel},
	})

	validate := validator.New(validator.WithRequiredStructEnabled())

	sessionRepo := repository.NewProctoringSessionRepository(db)
	sink := service.NewBrokerViolationSink(redisClient, cfg.RedisChannel, natsConn, logger)

	leaderboardService := service.NewLeaderboardService(sessionRepo, redisClient, cfg.LeaderboardCacheTTL, cfg.LeaderboardDefaultTop, logger)
	proctoringService := service.NewProctoringService(service.NewProctoringConfig(cfg.Engine), service.ProctoringDeps{
		Repo:        sessionRepo,
		Classifier:  classifier,
		Sink:        sink,
		Snapshots:   snapshots,
		Leaderboard: leaderboardService,
		Validator:   validate,
		Logger:      logger,
	})

	proctoringHandler := handler.NewProctoringHandler(proctoringService, validate, logger)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    8 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    os.Stdout,
	})
	router.Register(app, cfg, router.Dependencies{
		ProctoringHandler:  proctoringHandler,
		LeaderboardHandler: leaderboardHandler,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, proctoringService, logger)
}

func waitForShutdown(app *fiber.App, proctoring service.ProctoringService, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	// monitors checkpoint their counters so sessions resume after restart
	if err := proctoring.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("proctoring shutdown incomplete")
	}

	logger.Info().Msg("server stopped")
}

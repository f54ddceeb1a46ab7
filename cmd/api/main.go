package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/config"
	"github.com/noah-isme/gema-classroom-api/internal/database"
	"github.com/noah-isme/gema-classroom-api/internal/handler"
	"github.com/noah-isme/gema-classroom-api/internal/middleware"
	"github.com/noah-isme/gema-classroom-api/internal/observability"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
	"github.com/noah-isme/gema-classroom-api/internal/router"
	"github.com/noah-isme/gema-classroom-api/internal/service"
	cloud "github.com/noah-isme/gema-classroom-api/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "classroom-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	storage, err := newStorage(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create attachment storage")
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())

	groupRepo := repository.NewGroupRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	channel := ""
	if redisClient != nil || natsConn != nil {
		channel = cfg.NotificationChannel
	}
	notificationService := service.NewNotificationService(notificationRepo, service.NotificationBusConfig{
		Redis:       redisClient,
		NATS:        natsConn,
		ChannelBase: channel,
	}, logger)
	notificationService.Start(rootCtx)

	dispatcher := service.NewFanoutDispatcher(groupRepo, notificationService, service.FanoutConfig{
		Workers:    cfg.NotificationWorkers,
		BufferSize: cfg.NotificationBuffer,
		MaxRetries: cfg.NotificationRetries,
	}, logger)
	dispatcher.Start(rootCtx)

	groupService := service.NewGroupService(groupRepo, validate, logger)
	taskService := service.NewTaskService(taskRepo, groupRepo, submissionRepo, dispatcher, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, taskRepo, dispatcher, validate, logger)
	commentService := service.NewCommentService(commentRepo, submissionRepo, taskRepo, validate, logger)
	deadlineService := service.NewDeadlineService(taskRepo, groupRepo, submissionRepo, dispatcher, cfg.SweepTimezone, logger)
	uploader := service.NewAttachmentUploader(storage, cfg.UploadMaxMB, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024 * 4,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.AllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		TaskHandler:         handler.NewTaskHandler(taskService, groupService, deadlineService, uploader, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, commentService, uploader, logger),
		CommentHandler:      handler.NewCommentHandler(commentService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, deadlineService, logger, cfg.StreamKeepAlive),
		GroupHandler:        handler.NewGroupHandler(groupService, logger),
		HealthProbes:        healthProbes(db, redisClient, natsConn),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
	dispatcher.Stop()
	cancel()
}

func newStorage(cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if !cloudCfg.Enabled() {
		logger.Warn().Msg("cloudinary credentials missing, file uploads are disabled")
		return service.DisabledStorage{}, nil
	}
	return cloud.New(cloudCfg, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) []handler.HealthProbe {
	probes := []handler.HealthProbe{{
		Name:  "database",
		Check: func(ctx context.Context) error { return database.PingDatabase(ctx, db) },
	}}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	if natsConn != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "nats",
			Check: func(context.Context) error {
				if !natsConn.IsConnected() {
					return fmt.Errorf("nats status %s", natsConn.Status())
				}
				return nil
			},
		})
	}
	return probes
}

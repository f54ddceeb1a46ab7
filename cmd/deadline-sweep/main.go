// Command deadline-sweep sends reminders for tasks due tomorrow to students who
// have not submitted yet. It is meant to run once a day from a scheduler.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/config"
	"github.com/noah-isme/gema-classroom-api/internal/database"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
	"github.com/noah-isme/gema-classroom-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "deadline-sweep").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := service.NotificationBusConfig{}
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		bus.Redis = client
		bus.ChannelBase = cfg.NotificationChannel
	}

	groupRepo := repository.NewGroupRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), bus, logger)

	dispatcher := service.NewFanoutDispatcher(groupRepo, notificationService, service.FanoutConfig{Inline: true}, logger)
	deadlines := service.NewDeadlineService(taskRepo, groupRepo, submissionRepo, dispatcher, cfg.SweepTimezone, logger)

	result, err := deadlines.Sweep(ctx, time.Now().UTC())
	if err != nil {
		logger.Fatal().Err(err).Msg("deadline sweep failed")
	}

	logger.Info().
		Time("window_start", result.WindowStart).
		Time("window_end", result.WindowEnd).
		Int("tasks", result.TasksScanned).
		Int("reminders", result.RemindersQueued).
		Msg("deadline sweep finished")
}

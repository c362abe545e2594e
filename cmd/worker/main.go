package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/medisuite/portal-api/internal/config"
	"github.com/medisuite/portal-api/internal/email"
	"github.com/medisuite/portal-api/internal/repository/postgres"
	leaveService "github.com/medisuite/portal-api/internal/service/leave"
	notificationService "github.com/medisuite/portal-api/internal/service/notification"
	scheduleService "github.com/medisuite/portal-api/internal/service/schedule"
	internalworker "github.com/medisuite/portal-api/internal/worker"
	"github.com/medisuite/portal-api/pkg/logger"
	redisbroker "github.com/medisuite/portal-api/pkg/messaging/redis"
	"github.com/medisuite/portal-api/pkg/metrics"
	"github.com/medisuite/portal-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	appMetrics := metrics.New("portal_worker")

	userRepo := postgres.NewUserRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	leaveRepo := postgres.NewLeaveRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	notifierSvc := notificationService.NewService(notificationRepo, userRepo, broker, appLogger)
	scheduleSvc := scheduleService.NewService(doctorRepo, appointmentRepo, appLogger)
	leaveSvc := leaveService.NewService(
		leaveRepo, appointmentRepo, doctorRepo, scheduleSvc, notifierSvc, appMetrics, appLogger)

	dispatcher := worker.NewDispatcher(
		notificationRepo,
		email.NewSMTPService(cfg.SMTP),
		broker,
		worker.DispatcherConfig{
			BatchSize:    cfg.Worker.BatchSize,
			PollInterval: cfg.Worker.PollInterval,
			MaxRetries:   cfg.Worker.MaxRetries,
			RetryDelay:   cfg.Worker.RetryDelay,
		},
		appLogger,
		appMetrics,
	)

	sweeper := internalworker.NewLeaveSweepWorker(
		leaveSvc, cfg.Worker.SweepInterval, cfg.Worker.BatchSize, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Start(ctx)
	go sweeper.Start(ctx)

	log.Info().Msg("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker...")
	cancel()
}

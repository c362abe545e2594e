package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/medisuite/portal-api/internal/config"
	appointmentHandler "github.com/medisuite/portal-api/internal/handler/appointment"
	authHandler "github.com/medisuite/portal-api/internal/handler/auth"
	doctorHandler "github.com/medisuite/portal-api/internal/handler/doctor"
	healthHandler "github.com/medisuite/portal-api/internal/handler/health"
	labtestHandler "github.com/medisuite/portal-api/internal/handler/labtest"
	leaveHandler "github.com/medisuite/portal-api/internal/handler/leave"
	prescriptionHandler "github.com/medisuite/portal-api/internal/handler/prescription"
	recordHandler "github.com/medisuite/portal-api/internal/handler/record"
	ticketHandler "github.com/medisuite/portal-api/internal/handler/ticket"
	"github.com/medisuite/portal-api/internal/middleware"
	"github.com/medisuite/portal-api/internal/repository/postgres"
	"github.com/medisuite/portal-api/internal/router"
	appointmentService "github.com/medisuite/portal-api/internal/service/appointment"
	authService "github.com/medisuite/portal-api/internal/service/auth"
	doctorService "github.com/medisuite/portal-api/internal/service/doctor"
	labtestService "github.com/medisuite/portal-api/internal/service/labtest"
	leaveService "github.com/medisuite/portal-api/internal/service/leave"
	notificationService "github.com/medisuite/portal-api/internal/service/notification"
	prescriptionService "github.com/medisuite/portal-api/internal/service/prescription"
	recordService "github.com/medisuite/portal-api/internal/service/record"
	scheduleService "github.com/medisuite/portal-api/internal/service/schedule"
	ticketService "github.com/medisuite/portal-api/internal/service/ticket"
	"github.com/medisuite/portal-api/internal/storage"
	pkgauth "github.com/medisuite/portal-api/pkg/auth"
	"github.com/medisuite/portal-api/pkg/logger"
	redisbroker "github.com/medisuite/portal-api/pkg/messaging/redis"
	"github.com/medisuite/portal-api/pkg/metrics"
	"github.com/medisuite/portal-api/pkg/security"
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

	store, err := storage.NewFSStore(cfg.Storage.Dir, cfg.Storage.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	appMetrics := metrics.New("portal")

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	leaveRepo := postgres.NewLeaveRepository(db)
	labTestRepo := postgres.NewLabTestRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)
	prescriptionRepo := postgres.NewPrescriptionRepository(db)
	recordRepo := postgres.NewMedicalRecordRepository(db)

	// Services
	jwtService := pkgauth.NewJWTService(pkgauth.Config{
		Secret:             cfg.JWT.Secret,
		RefreshSecret:      cfg.JWT.RefreshSecret,
		ExpiryHours:        cfg.JWT.ExpiryHours,
		RefreshExpiryHours: cfg.JWT.RefreshExpiryHours,
	})
	hasher := security.NewBcryptHasher(0)

	notifierSvc := notificationService.NewService(notificationRepo, userRepo, broker, appLogger)
	scheduleSvc := scheduleService.NewService(doctorRepo, appointmentRepo, appLogger)
	authSvc := authService.NewService(userRepo, hasher, jwtService, appLogger)
	doctorSvc := doctorService.NewService(doctorRepo, scheduleSvc, appLogger)
	appointmentSvc := appointmentService.NewService(
		appointmentRepo, doctorRepo, prescriptionRepo, scheduleSvc, notifierSvc, appMetrics, appLogger)
	leaveSvc := leaveService.NewService(
		leaveRepo, appointmentRepo, doctorRepo, scheduleSvc, notifierSvc, appMetrics, appLogger)
	labTestSvc := labtestService.NewService(labTestRepo, recordRepo, store, notifierSvc, appMetrics, appLogger)
	prescriptionSvc := prescriptionService.NewService(prescriptionRepo, appointmentRepo)
	recordSvc := recordService.NewService(recordRepo, store, appLogger)
	ticketSvc := ticketService.NewService(ticketRepo, notifierSvc)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	r := router.New(authMiddleware, router.Handlers{
		Health:       healthHandler.NewHandler(db),
		Auth:         authHandler.NewHandler(authSvc, jwtService),
		Doctor:       doctorHandler.NewHandler(doctorSvc, scheduleSvc),
		Appointment:  appointmentHandler.NewHandler(appointmentSvc),
		Leave:        leaveHandler.NewHandler(leaveSvc, doctorSvc),
		LabTest:      labtestHandler.NewHandler(labTestSvc),
		Prescription: prescriptionHandler.NewHandler(prescriptionSvc, doctorSvc),
		Record:       recordHandler.NewHandler(recordSvc),
		Ticket:       ticketHandler.NewHandler(ticketSvc),
	}, router.Config{
		RateLimit:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:  cfg.RateLimit.Burst,
		CORSConfig: middleware.DefaultCORSConfig(),
	})
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

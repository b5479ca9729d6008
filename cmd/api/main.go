package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hfiles/clinic-api/internal/calendar"
	"github.com/hfiles/clinic-api/internal/config"
	"github.com/hfiles/clinic-api/internal/email"
	"github.com/hfiles/clinic-api/internal/handler"
	consentHandler "github.com/hfiles/clinic-api/internal/handler/consent"
	schedulingHandler "github.com/hfiles/clinic-api/internal/handler/scheduling"
	"github.com/hfiles/clinic-api/internal/middleware"
	"github.com/hfiles/clinic-api/internal/repository/postgres"
	"github.com/hfiles/clinic-api/internal/router"
	appointmentService "github.com/hfiles/clinic-api/internal/service/appointment"
	consentService "github.com/hfiles/clinic-api/internal/service/consent"
	patientService "github.com/hfiles/clinic-api/internal/service/patient"
	"github.com/hfiles/clinic-api/internal/service/scheduling"
	visitService "github.com/hfiles/clinic-api/internal/service/visit"
	"github.com/hfiles/clinic-api/internal/storage"
	"github.com/hfiles/clinic-api/pkg/auth"
	"github.com/hfiles/clinic-api/pkg/logger"
	"github.com/hfiles/clinic-api/pkg/messaging/redis"
	"github.com/hfiles/clinic-api/pkg/metrics"
	"github.com/hfiles/clinic-api/pkg/worker"
)

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("clinic", "api")

	patientRepo := postgres.NewPatientRepository(db)
	visitRepo := postgres.NewVisitRepository(db)
	consentRepo := postgres.NewConsentRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	txm := postgres.NewTxManager(db)

	docStore, err := storage.NewLocalStore(cfg.Storage)
	if err != nil {
		log.Fatal(err, "failed to initialize document store")
	}

	// Deployments without a connected calendar leave base_url empty.
	var calendarSvc calendar.Service = calendar.Noop{}
	if cfg.Calendar.BaseURL != "" {
		calendarSvc = calendar.NewHTTPService(cfg.Calendar, log.Zerolog())
	}
	emailSvc := email.NewSMTPService(cfg.SMTP)

	patientSvc := patientService.NewService(patientRepo)
	visitSvc := visitService.NewService(visitRepo, patientRepo, log.Zerolog())
	consentSvc := consentService.NewService(consentRepo, txm, outboxRepo, docStore, cfg.Links)
	appointmentSvc := appointmentService.NewService(appointmentRepo)
	schedulerSvc := scheduling.NewService(
		txm,
		patientSvc,
		visitSvc,
		consentSvc,
		appointmentSvc,
		appointmentRepo,
		outboxRepo,
		calendarSvc,
		emailSvc,
		&scheduling.PrincipalAuthorizer{},
		m,
		log.Zerolog(),
		scheduling.Config{HookTimeout: cfg.Scheduling.HookTimeout},
	)

	tokens := auth.NewTokenService(cfg.JWT.Secret)
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	h := handler.NewHandler(db)
	schedH := schedulingHandler.NewHandler(schedulerSvc, appointmentSvc)
	consH := consentHandler.NewHandler(consentSvc)

	r := router.NewRouter(authMiddleware, schedH, consH, h, router.Config{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimitRPS:     cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:   cfg.RateLimit.Burst,
		RequestTimeout:   cfg.Server.RequestTimeout,
		CORSConfig:       middleware.DefaultCORSConfig(),
		MetricsPrefix:    "clinic_api",

		PrometheusEnabled: cfg.Monitoring.PrometheusEnabled,
		MetricsPath:       cfg.Monitoring.MetricsPath,
	})
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// The outbox processor also runs in cmd/worker; running it here too
	// is safe because pending events are locked with SKIP LOCKED.
	broker, err := redis.NewRedisBroker(cfg.Redis, log.Zerolog())
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	processorCtx, stopProcessor := context.WithCancel(context.Background())
	defer stopProcessor()
	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox, log, m)
	go outboxProcessor.Start(processorCtx)

	go func() {
		log.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	stopProcessor()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}

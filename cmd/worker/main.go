package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hfiles/clinic-api/internal/config"
	"github.com/hfiles/clinic-api/internal/repository/postgres"
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

	broker, err := redis.NewRedisBroker(cfg.Redis, log.Zerolog())
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("clinic", "worker")
	outboxRepo := postgres.NewOutboxRepository(db)
	processor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox, log, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go processor.Start(ctx)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port+1),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "metrics server stopped")
		}
	}()

	log.Info("outbox worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down worker...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "failed to shut down metrics server")
	}

	log.Info("worker exited properly")
}

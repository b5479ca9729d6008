package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
	"github.com/hfiles/clinic-api/pkg/logger"
	"github.com/hfiles/clinic-api/pkg/messaging"
	"github.com/hfiles/clinic-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

// OutboxProcessor drains pending domain events from the outbox table and
// publishes them to the broker, retrying with a delay and dead-lettering
// events that exhaust their retries.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 30 * time.Second
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  log,
		metrics: m,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "failed to process outbox events")
			}
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := p.broker.Publish(ctx, event.EventType, event.Payload)
	if err == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		return p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil)
	}

	p.metrics.OutboxEventsFailed.Inc()
	errStr := err.Error()

	if event.RetryCount+1 >= p.config.MaxRetries {
		if dlErr := p.repo.MoveToDeadLetter(ctx, event); dlErr != nil {
			return fmt.Errorf("failed to dead-letter event: %w", dlErr)
		}
		return err
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := time.Now().Add(p.config.RetryDelay)
	if retryErr := p.repo.MarkForRetry(ctx, event.ID, retryAt, &errStr); retryErr != nil {
		return fmt.Errorf("failed to schedule retry: %w", retryErr)
	}
	return err
}

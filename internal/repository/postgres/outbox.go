package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()
	event.Status = string(model.OutboxStatusPending)

	_, err := r.ext(ctx).ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, error_message,
		       created_at, processed_at, updated_at, retry_count, retry_at
		FROM outbox_events
		WHERE status = $1
		  AND (retry_at IS NULL OR retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	var events []*model.OutboxEvent
	err := sqlx.SelectContext(ctx, r.ext(ctx), &events, query, string(model.OutboxStatusPending), limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	query := `
		UPDATE outbox_events
		SET status = $1,
		    error_message = $2,
		    processed_at = CASE WHEN $1 = 'PROCESSED' THEN NOW() ELSE processed_at END,
		    updated_at = NOW()
		WHERE id = $3
	`
	if _, err := r.ext(ctx).ExecContext(ctx, query, string(status), errorMessage, id); err != nil {
		return fmt.Errorf("failed to update outbox status: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkForRetry(ctx context.Context, id uuid.UUID, retryAt time.Time, errorMessage *string) error {
	query := `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
		    retry_at = $1,
		    error_message = $2,
		    updated_at = NOW()
		WHERE id = $3
	`
	if _, err := r.ext(ctx).ExecContext(ctx, query, retryAt, errorMessage, id); err != nil {
		return fmt.Errorf("failed to mark outbox event for retry: %w", err)
	}
	return nil
}

func (r *outboxRepository) MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		insert := `
			INSERT INTO outbox_dead_letters (
				id, event_type, payload, error_message, retry_count, created_at, failed_at
			) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`
		if _, err := r.ext(ctx).ExecContext(ctx, insert,
			event.ID,
			event.EventType,
			event.Payload,
			event.ErrorMessage,
			event.RetryCount,
			event.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert dead letter: %w", err)
		}

		if _, err := r.ext(ctx).ExecContext(ctx, `DELETE FROM outbox_events WHERE id = $1`, event.ID); err != nil {
			return fmt.Errorf("failed to remove dead event: %w", err)
		}
		return nil
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1 AND processed_at < $2
	`
	result, err := r.ext(ctx).ExecContext(ctx, query, string(model.OutboxStatusProcessed), before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}

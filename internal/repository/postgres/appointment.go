package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
)

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, clinic_id, visitor_name, visitor_phone,
			date, time, status, treatment, calendar_event_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		appointment.ID,
		appointment.ClinicID,
		appointment.VisitorName,
		appointment.VisitorPhone,
		appointment.Date,
		appointment.Time,
		appointment.Status,
		appointment.Treatment,
		appointment.CalendarEventID,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", translateErr(err))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, clinic_id, visitor_name, visitor_phone,
		       date, time, status, treatment, calendar_event_id,
		       created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	if err := sqlx.GetContext(ctx, r.ext(ctx), &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", translateErr(err))
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, treatment *string) error {
	// The status predicate makes concurrent transitions race on the row
	// itself instead of on stale reads: the loser matches zero rows.
	query := `
		UPDATE appointments
		SET status = $1,
		    treatment = COALESCE($2, treatment),
		    updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.ext(ctx).ExecContext(ctx, query, to, treatment, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	query := `
		UPDATE appointments
		SET calendar_event_id = $1, updated_at = $2
		WHERE id = $3
	`
	if _, err := r.ext(ctx).ExecContext(ctx, query, eventID, time.Now(), id); err != nil {
		return fmt.Errorf("failed to set calendar event id: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM appointments
		WHERE id = $1
	`
	result, err := r.ext(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, clinicID int64, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, clinic_id, visitor_name, visitor_phone,
		       date, time, status, treatment, calendar_event_id,
		       created_at, updated_at
		FROM appointments
		WHERE clinic_id = $1
	`
	args := []interface{}{clinicID}
	argCount := 2

	if filters != nil {
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if !filters.StartDate.IsZero() {
			query += fmt.Sprintf(" AND date >= $%d", argCount)
			args = append(args, filters.StartDate)
			argCount++
		}
		if !filters.EndDate.IsZero() {
			query += fmt.Sprintf(" AND date <= $%d", argCount)
			args = append(args, filters.EndDate)
			argCount++
		}
	}

	query += " ORDER BY date ASC, time ASC"

	if filters != nil {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
		args = append(args, filters.Page.Limit(), filters.Page.Offset())
	}

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

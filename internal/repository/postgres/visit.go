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

func (r *visitRepository) Create(ctx context.Context, visit *model.Visit) error {
	query := `
		INSERT INTO visits (
			id, patient_id, clinic_id, date, time, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	visit.ID = uuid.New()
	visit.CreatedAt = time.Now()
	visit.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		visit.ID,
		visit.PatientID,
		visit.ClinicID,
		visit.Date,
		visit.Time,
		visit.CreatedAt,
		visit.UpdatedAt,
	)
	if err != nil {
		// unique (patient_id, date, time) backs the find-or-create retry
		return fmt.Errorf("failed to create visit: %w", translateErr(err))
	}
	return nil
}

func (r *visitRepository) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	query := `
		SELECT id, patient_id, clinic_id, date, time, created_at, updated_at
		FROM visits
		WHERE id = $1
	`
	var visit model.Visit
	if err := sqlx.GetContext(ctx, r.ext(ctx), &visit, query, id); err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", translateErr(err))
	}
	return &visit, nil
}

func (r *visitRepository) Find(ctx context.Context, patientID uuid.UUID, date time.Time, timeOfDay string) (*model.Visit, error) {
	query := `
		SELECT id, patient_id, clinic_id, date, time, created_at, updated_at
		FROM visits
		WHERE patient_id = $1 AND date = $2 AND time = $3
	`
	var visit model.Visit
	if err := sqlx.GetContext(ctx, r.ext(ctx), &visit, query, patientID, date, timeOfDay); err != nil {
		return nil, fmt.Errorf("failed to find visit: %w", translateErr(err))
	}
	return &visit, nil
}

func (r *visitRepository) FindForClinic(ctx context.Context, patientID uuid.UUID, clinicID int64, date time.Time, timeOfDay string) (*model.Visit, error) {
	query := `
		SELECT id, patient_id, clinic_id, date, time, created_at, updated_at
		FROM visits
		WHERE patient_id = $1 AND clinic_id = $2 AND date = $3 AND time = $4
	`
	var visit model.Visit
	if err := sqlx.GetContext(ctx, r.ext(ctx), &visit, query, patientID, clinicID, date, timeOfDay); err != nil {
		return nil, fmt.Errorf("failed to find visit for clinic: %w", translateErr(err))
	}
	return &visit, nil
}

func (r *visitRepository) ExistsForClinic(ctx context.Context, patientID uuid.UUID, clinicID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM visits WHERE patient_id = $1 AND clinic_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.ext(ctx), &exists, query, patientID, clinicID); err != nil {
		return false, fmt.Errorf("failed to check visits for clinic: %w", err)
	}
	return exists, nil
}

func (r *visitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM visits
		WHERE id = $1
	`
	result, err := r.ext(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete visit: %w", err)
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

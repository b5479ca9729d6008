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

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, hfid, name, phone, country_code, email, date_of_birth,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	patient.ID = uuid.New()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		patient.ID,
		patient.HFID,
		patient.Name,
		patient.Phone,
		patient.CountryCode,
		patient.Email,
		patient.DateOfBirth,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", translateErr(err))
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, hfid, name, phone, country_code, email, date_of_birth,
		       created_at, updated_at
		FROM patients
		WHERE id = $1
	`
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.ext(ctx), &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", translateErr(err))
	}
	return &patient, nil
}

func (r *patientRepository) GetByHFID(ctx context.Context, hfid string) (*model.Patient, error) {
	query := `
		SELECT id, hfid, name, phone, country_code, email, date_of_birth,
		       created_at, updated_at
		FROM patients
		WHERE hfid = $1
	`
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.ext(ctx), &patient, query, hfid); err != nil {
		return nil, fmt.Errorf("failed to get patient by hfid: %w", translateErr(err))
	}
	return &patient, nil
}

// FindByPhone returns the most recently registered patient carrying the
// phone number. Phone numbers are not unique identities; callers treat
// this as best-effort.
func (r *patientRepository) FindByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	query := `
		SELECT id, hfid, name, phone, country_code, email, date_of_birth,
		       created_at, updated_at
		FROM patients
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.ext(ctx), &patient, query, phone); err != nil {
		return nil, fmt.Errorf("failed to find patient by phone: %w", translateErr(err))
	}
	return &patient, nil
}

func (r *patientRepository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	query := `
		UPDATE patients
		SET name = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.ext(ctx).ExecContext(ctx, query, name, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update patient name: %w", err)
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

func (r *patientRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM patients WHERE phone = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.ext(ctx), &exists, query, phone); err != nil {
		return false, fmt.Errorf("failed to check phone: %w", err)
	}
	return exists, nil
}

func (r *patientRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM patients WHERE email = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.ext(ctx), &exists, query, email); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *patientRepository) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	query := `
		INSERT INTO patient_subscriptions (
			id, patient_id, plan, started_at, expires_at
		) VALUES ($1, $2, $3, $4, $5)
	`
	sub.ID = uuid.New()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		sub.ID,
		sub.PatientID,
		sub.Plan,
		sub.StartedAt,
		sub.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

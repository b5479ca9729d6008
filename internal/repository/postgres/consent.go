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

func (r *consentRepository) ListTemplates(ctx context.Context, clinicID int64) ([]*model.ConsentFormTemplate, error) {
	query := `
		SELECT id, clinic_id, title
		FROM consent_form_templates
		WHERE clinic_id = $1
		ORDER BY title ASC
	`
	var templates []*model.ConsentFormTemplate
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &templates, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list consent templates: %w", err)
	}
	return templates, nil
}

func (r *consentRepository) CreateIssuance(ctx context.Context, issuance *model.ConsentFormIssuance) error {
	query := `
		INSERT INTO consent_form_issuances (
			id, visit_id, template_id, title, document_url, verified,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	issuance.ID = uuid.New()
	issuance.CreatedAt = time.Now()
	issuance.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		issuance.ID,
		issuance.VisitID,
		issuance.TemplateID,
		issuance.Title,
		issuance.DocumentURL,
		issuance.Verified,
		issuance.CreatedAt,
		issuance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consent issuance: %w", translateErr(err))
	}
	return nil
}

func (r *consentRepository) GetIssuance(ctx context.Context, id uuid.UUID) (*model.ConsentFormIssuance, error) {
	query := `
		SELECT id, visit_id, template_id, title, document_url, verified,
		       created_at, updated_at
		FROM consent_form_issuances
		WHERE id = $1
	`
	var issuance model.ConsentFormIssuance
	if err := sqlx.GetContext(ctx, r.ext(ctx), &issuance, query, id); err != nil {
		return nil, fmt.Errorf("failed to get consent issuance: %w", translateErr(err))
	}
	return &issuance, nil
}

func (r *consentRepository) ListIssuancesByVisit(ctx context.Context, visitID uuid.UUID) ([]*model.ConsentFormIssuance, error) {
	query := `
		SELECT id, visit_id, template_id, title, document_url, verified,
		       created_at, updated_at
		FROM consent_form_issuances
		WHERE visit_id = $1
		ORDER BY created_at ASC
	`
	var issuances []*model.ConsentFormIssuance
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &issuances, query, visitID); err != nil {
		return nil, fmt.Errorf("failed to list consent issuances: %w", err)
	}
	return issuances, nil
}

func (r *consentRepository) SetDocumentURL(ctx context.Context, id uuid.UUID, url string) error {
	query := `
		UPDATE consent_form_issuances
		SET document_url = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.ext(ctx).ExecContext(ctx, query, url, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set document url: %w", err)
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

func (r *consentRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	// Verified is monotonic; the predicate keeps re-verification a no-op.
	query := `
		UPDATE consent_form_issuances
		SET verified = TRUE, updated_at = $1
		WHERE id = $2 AND verified = FALSE
	`
	if _, err := r.ext(ctx).ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark consent verified: %w", err)
	}
	return nil
}

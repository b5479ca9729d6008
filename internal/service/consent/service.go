package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
	"github.com/hfiles/clinic-api/internal/storage"
	apperrors "github.com/hfiles/clinic-api/pkg/errors"
)

// Lifecycle errors. TitleMismatch and NotSubmitted are matched by callers
// via errors.Is.
var (
	ErrTitleMismatch = apperrors.NewConflict("consent form title mismatch")
	ErrNotSubmitted  = apperrors.NewGuardViolation("consent form has not been submitted")
)

const templateCacheTTL = 5 * time.Minute

// Service issues consent forms against a clinic's template catalog and
// owns the issuance verification lifecycle.
type Service struct {
	repo   repository.ConsentRepository
	txm    repository.TxManager
	outbox repository.OutboxRepository
	docs   storage.DocumentStore
	links  LinkConfig

	// catalog is a read-through cache of per-clinic template lists.
	catalog *gocache.Cache
}

func NewService(repo repository.ConsentRepository, txm repository.TxManager, outbox repository.OutboxRepository, docs storage.DocumentStore, links LinkConfig) *Service {
	return &Service{
		repo:    repo,
		txm:     txm,
		outbox:  outbox,
		docs:    docs,
		links:   links,
		catalog: gocache.New(templateCacheTTL, 2*templateCacheTTL),
	}
}

// Issue resolves all titles against the clinic catalog and creates one
// unverified issuance per template. All-or-nothing: a single unknown
// title fails the whole batch and nothing is written.
func (s *Service) Issue(ctx context.Context, visit *model.Visit, clinicID int64, titles []string) ([]*model.ConsentFormIssuance, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	templates, err := s.templatesForClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	byTitle := make(map[string]*model.ConsentFormTemplate, len(templates))
	for _, tpl := range templates {
		byTitle[strings.ToLower(tpl.Title)] = tpl
	}

	resolved := make([]*model.ConsentFormTemplate, 0, len(titles))
	var missing []string
	for _, title := range titles {
		tpl, ok := byTitle[strings.ToLower(title)]
		if !ok {
			missing = append(missing, title)
			continue
		}
		resolved = append(resolved, tpl)
	}
	if len(missing) > 0 {
		return nil, apperrors.NewConflict("unknown consent form", missing...)
	}

	issuances := make([]*model.ConsentFormIssuance, 0, len(resolved))
	for _, tpl := range resolved {
		issuance := &model.ConsentFormIssuance{
			VisitID:    visit.ID,
			TemplateID: tpl.ID,
			Title:      tpl.Title,
			Verified:   false,
		}
		if err := s.repo.CreateIssuance(ctx, issuance); err != nil {
			return nil, fmt.Errorf("failed to issue consent form %q: %w", tpl.Title, err)
		}
		issuances = append(issuances, issuance)
	}
	return issuances, nil
}

// Verify flips the issuance to verified. Idempotent: verifying an
// already-verified issuance succeeds silently.
func (s *Service) Verify(ctx context.Context, issuanceID uuid.UUID, expectedTitle string) error {
	issuance, err := s.getIssuance(ctx, issuanceID)
	if err != nil {
		return err
	}

	if !strings.EqualFold(issuance.Title, expectedTitle) {
		return ErrTitleMismatch
	}
	if issuance.Verified {
		return nil
	}
	if !issuance.Submitted() {
		return ErrNotSubmitted
	}

	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.MarkVerified(ctx, issuanceID); err != nil {
			return err
		}
		issuance.Verified = true
		raw, err := json.Marshal(issuance)
		if err != nil {
			return fmt.Errorf("failed to marshal verification payload: %w", err)
		}
		return s.outbox.Create(ctx, &model.OutboxEvent{
			EventType: model.EventConsentVerified,
			Payload:   raw,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to verify consent form: %w", err)
	}
	return nil
}

// AttachDocument uploads the signed document and persists its reference.
// The upload happens outside the transaction; if the reference write then
// fails, the orphaned blob is accepted collateral.
func (s *Service) AttachDocument(ctx context.Context, issuanceID uuid.UUID, expectedTitle, contentType string, body io.Reader) (string, error) {
	issuance, err := s.getIssuance(ctx, issuanceID)
	if err != nil {
		return "", err
	}

	if !strings.EqualFold(issuance.Title, expectedTitle) {
		return "", ErrTitleMismatch
	}

	key := fmt.Sprintf("consents/%s/%s", issuance.VisitID, issuance.ID)
	url, err := s.docs.Upload(ctx, key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("failed to upload consent document: %w", err)
	}

	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.SetDocumentURL(ctx, issuanceID, url)
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist document reference: %w", err)
	}
	return url, nil
}

// ListByVisit returns a visit's issuances in issue order.
func (s *Service) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*model.ConsentFormIssuance, error) {
	issuances, err := s.repo.ListIssuancesByVisit(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list consent issuances: %w", err)
	}
	return issuances, nil
}

func (s *Service) getIssuance(ctx context.Context, id uuid.UUID) (*model.ConsentFormIssuance, error) {
	issuance, err := s.repo.GetIssuance(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("consent form", err)
		}
		return nil, fmt.Errorf("failed to load consent issuance: %w", err)
	}
	return issuance, nil
}

func (s *Service) templatesForClinic(ctx context.Context, clinicID int64) ([]*model.ConsentFormTemplate, error) {
	key := fmt.Sprintf("clinic:%d", clinicID)
	if cached, ok := s.catalog.Get(key); ok {
		return cached.([]*model.ConsentFormTemplate), nil
	}

	templates, err := s.repo.ListTemplates(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load consent catalog: %w", err)
	}
	s.catalog.Set(key, templates, gocache.DefaultExpiration)
	return templates, nil
}

package patient

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
	apperrors "github.com/hfiles/clinic-api/pkg/errors"
)

const (
	maxPatientAge = 150

	defaultPlan = "basic"
)

// Service resolves externally issued HFIDs to canonical patient records
// and drives registration for brand-new identities.
type Service struct {
	repo repository.PatientRepository

	// now and randInt are swapped in tests.
	now     func() time.Time
	randInt func(n int) int
}

func NewService(repo repository.PatientRepository) *Service {
	return &Service{
		repo:    repo,
		now:     time.Now,
		randInt: rand.Intn,
	}
}

// Get loads one patient by row id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

// Resolve maps an HFID to its patient record, creating one when the HFID
// is unseen. Safe under concurrent calls with the same HFID: losing the
// insert race falls back to reading the winner's row.
func (s *Service) Resolve(ctx context.Context, hfid, nameFallback string) (*model.Patient, error) {
	if hfid == "" {
		return nil, apperrors.NewValidation("hfid is required", nil)
	}

	existing, err := s.repo.GetByHFID(ctx, hfid)
	if err == nil {
		if nameFallback != "" && existing.Name != nameFallback {
			if err := s.repo.UpdateName(ctx, existing.ID, nameFallback); err != nil {
				return nil, fmt.Errorf("failed to refresh patient name: %w", err)
			}
			existing.Name = nameFallback
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve patient: %w", err)
	}

	created := &model.Patient{
		HFID: hfid,
		Name: nameFallback,
	}
	if err := s.repo.Create(ctx, created); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost the race; the winner's row is canonical
			return s.repo.GetByHFID(ctx, hfid)
		}
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return created, nil
}

// Register creates a patient account for a visitor without an HFID,
// generating a fresh identity and attaching the default subscription.
func (s *Service) Register(ctx context.Context, fields *model.NewPatientFields) (*model.Patient, error) {
	dob, err := model.ParseDate(fields.DateOfBirth)
	if err != nil {
		return nil, apperrors.NewValidation("invalid date of birth", err)
	}

	age := s.ageAt(dob)
	if age < 0 || age > maxPatientAge {
		return nil, apperrors.NewValidation(fmt.Sprintf("age %d is out of range", age), nil)
	}

	taken, err := s.repo.ExistsByPhone(ctx, fields.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check phone uniqueness: %w", err)
	}
	if taken {
		return nil, apperrors.NewConflict("phone number already registered", fields.Phone)
	}

	if fields.Email != "" {
		taken, err := s.repo.ExistsByEmail(ctx, fields.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if taken {
			return nil, apperrors.NewConflict("email already registered", fields.Email)
		}
	}

	patient := &model.Patient{
		HFID:        s.generateHFID(fields.Name, dob),
		Name:        fields.Name,
		Phone:       fields.Phone,
		CountryCode: fields.CountryCode,
		DateOfBirth: &dob,
	}
	if fields.Email != "" {
		email := fields.Email
		patient.Email = &email
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	sub := &model.Subscription{
		PatientID: patient.ID,
		Plan:      defaultPlan,
		StartedAt: s.now(),
		ExpiresAt: model.SubscriptionUnlimited,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	return patient, nil
}

// generateHFID derives an identity from the patient's name and birth
// date, with a random suffix to break collisions.
func (s *Service) generateHFID(name string, dob time.Time) string {
	letters := make([]rune, 0, 3)
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
		if len(letters) == 3 {
			break
		}
	}
	for len(letters) < 3 {
		letters = append(letters, 'X')
	}

	return fmt.Sprintf("HF%s%s%03d", string(letters), dob.Format("02012006"), s.randInt(1000))
}

func (s *Service) ageAt(dob time.Time) int {
	now := s.now()
	age := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		age--
	}
	return age
}

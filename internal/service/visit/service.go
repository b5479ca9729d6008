package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
	apperrors "github.com/hfiles/clinic-api/pkg/errors"
)

// Service reconciles appointments with visit records, keeping at most one
// visit per (patient, date, time).
type Service struct {
	visits   repository.VisitRepository
	patients repository.PatientRepository
	logger   *zerolog.Logger
}

func NewService(visits repository.VisitRepository, patients repository.PatientRepository, logger *zerolog.Logger) *Service {
	return &Service{
		visits:   visits,
		patients: patients,
		logger:   logger,
	}
}

// Get loads one visit by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	vis, err := s.visits.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("visit", err)
		}
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return vis, nil
}

// EnsureVisit returns the visit for (patient, date, time), creating it if
// absent. Concurrent callers converge on one row: losing the insert race
// falls back to reading the winner's row.
func (s *Service) EnsureVisit(ctx context.Context, patientID uuid.UUID, clinicID int64, date time.Time, timeOfDay string) (*model.Visit, error) {
	existing, err := s.visits.Find(ctx, patientID, date, timeOfDay)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up visit: %w", err)
	}

	created := &model.Visit{
		PatientID: patientID,
		ClinicID:  clinicID,
		Date:      date,
		Time:      timeOfDay,
	}
	if err := s.visits.Create(ctx, created); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.visits.Find(ctx, patientID, date, timeOfDay)
		}
		return nil, fmt.Errorf("failed to create visit: %w", err)
	}
	return created, nil
}

// HasVisitInClinic reports whether the patient already has any visit in
// the clinic, regardless of date. Used to reject duplicate follow-up
// bookings.
func (s *Service) HasVisitInClinic(ctx context.Context, patientID uuid.UUID, clinicID int64) (bool, error) {
	exists, err := s.visits.ExistsForClinic(ctx, patientID, clinicID)
	if err != nil {
		return false, fmt.Errorf("failed to check clinic visits: %w", err)
	}
	return exists, nil
}

// CleanupForAppointment removes the visit spawned by a deleted
// appointment. The patient is matched by the appointment's contact phone,
// which is not a guaranteed-unique identity, so the whole lookup is
// best-effort: every failure is logged and swallowed.
func (s *Service) CleanupForAppointment(ctx context.Context, apt *model.Appointment) {
	patient, err := s.patients.FindByPhone(ctx, apt.VisitorPhone)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn().Err(err).
				Str("appointment_id", apt.ID.String()).
				Msg("visit cleanup: patient lookup failed")
		}
		return
	}

	visit, err := s.visits.FindForClinic(ctx, patient.ID, apt.ClinicID, apt.Date, apt.Time)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn().Err(err).
				Str("appointment_id", apt.ID.String()).
				Msg("visit cleanup: visit lookup failed")
		}
		return
	}

	if err := s.visits.Delete(ctx, visit.ID); err != nil {
		s.logger.Warn().Err(err).
			Str("visit_id", visit.ID.String()).
			Msg("visit cleanup: delete failed")
	}
}

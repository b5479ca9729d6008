package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
	apperrors "github.com/hfiles/clinic-api/pkg/errors"
)

// CompletionWindow is how long after the booked time an appointment may
// still be marked completed.
const CompletionWindow = 2 * time.Hour

// Guard violations surfaced by transition checks.
var (
	ErrTooLateToCancel         = apperrors.NewGuardViolation("too late to cancel")
	ErrNotToday                = apperrors.NewGuardViolation("appointment is not scheduled for today")
	ErrOutsideCompletionWindow = apperrors.NewGuardViolation("completion window has passed")
	ErrNotScheduled            = apperrors.NewGuardViolation("appointment is no longer scheduled")
	ErrInvalidTransition       = apperrors.NewGuardViolation("invalid status transition")
)

// Service owns appointment status transitions and the time-window rules
// gating each of them.
type Service struct {
	repo repository.AppointmentRepository

	now func() time.Time
}

func NewService(repo repository.AppointmentRepository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, clinicID int64, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, clinicID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// CheckTransition evaluates the guard for moving apt to target at the
// current wall-clock time, without persisting anything.
func (s *Service) CheckTransition(apt *model.Appointment, target model.AppointmentStatus) error {
	return checkTransition(apt, target, s.now())
}

// Transition applies a guarded status change. The optional treatment note
// is attached on completion.
func (s *Service) Transition(ctx context.Context, apt *model.Appointment, target model.AppointmentStatus, treatment string) error {
	if err := checkTransition(apt, target, s.now()); err != nil {
		return err
	}

	var note *string
	if target == model.AppointmentStatusCompleted && treatment != "" {
		note = &treatment
	}

	if err := s.repo.UpdateStatus(ctx, apt.ID, model.AppointmentStatusScheduled, target, note); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Zero rows matched: the row is gone, or a concurrent
			// transition already moved it out of Scheduled. Re-read to
			// tell the two apart.
			if _, getErr := s.repo.Get(ctx, apt.ID); getErr != nil {
				return apperrors.NewNotFound("appointment", err)
			}
			return ErrNotScheduled
		}
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	apt.Status = target
	if note != nil {
		apt.Treatment = note
	}
	return nil
}

// checkTransition holds the full transition table. Scheduled is the only
// non-terminal state.
func checkTransition(apt *model.Appointment, target model.AppointmentStatus, now time.Time) error {
	if !target.Valid() || target == model.AppointmentStatusScheduled {
		return ErrInvalidTransition
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return ErrNotScheduled
	}

	startsAt := apt.StartsAt()

	switch target {
	case model.AppointmentStatusCanceled:
		if !startsAt.After(now) {
			return ErrTooLateToCancel
		}
	case model.AppointmentStatusCompleted:
		if !sameDay(apt.Date, now) {
			return ErrNotToday
		}
		// No lower bound: completing before the booked time is allowed
		// within the day. Only the trailing window is enforced.
		if now.Sub(startsAt) > CompletionWindow {
			return ErrOutsideCompletionWindow
		}
	case model.AppointmentStatusAbsent:
		// no time guard
	}
	return nil
}

func sameDay(date, now time.Time) bool {
	y1, m1, d1 := date.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

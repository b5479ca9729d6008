package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hfiles/clinic-api/internal/calendar"
	"github.com/hfiles/clinic-api/internal/email"
	"github.com/hfiles/clinic-api/internal/model"
	"github.com/hfiles/clinic-api/internal/repository"
	appointmentsvc "github.com/hfiles/clinic-api/internal/service/appointment"
	"github.com/hfiles/clinic-api/internal/service/consent"
	patientsvc "github.com/hfiles/clinic-api/internal/service/patient"
	visitsvc "github.com/hfiles/clinic-api/internal/service/visit"
	"github.com/hfiles/clinic-api/pkg/auth"
	apperrors "github.com/hfiles/clinic-api/pkg/errors"
	"github.com/hfiles/clinic-api/pkg/metrics"
)

// Authorizer decides whether a caller may act on a clinic. Entitlement
// management itself lives in the identity service.
type Authorizer interface {
	IsClinicAuthorized(ctx context.Context, clinicID int64, principal *auth.Principal) bool
}

// PrincipalAuthorizer authorizes against the clinic set carried in the
// caller's token.
type PrincipalAuthorizer struct{}

func (PrincipalAuthorizer) IsClinicAuthorized(_ context.Context, clinicID int64, principal *auth.Principal) bool {
	return principal != nil && principal.CanAccessClinic(clinicID)
}

// Service composes patient resolution, visit reconciliation, consent
// issuance and the appointment state machine into the top-level booking
// operations. Each operation runs one database transaction; external
// side effects run post-commit and are best-effort.
type Service struct {
	txm          repository.TxManager
	patients     *patientsvc.Service
	visits       *visitsvc.Service
	consents     *consent.Service
	appointments *appointmentsvc.Service
	apptRepo     repository.AppointmentRepository
	outbox       repository.OutboxRepository
	calendar     calendar.Service
	email        email.Service
	authz        Authorizer
	metrics      *metrics.Metrics
	logger       *zerolog.Logger

	hookTimeout time.Duration
}

type Config struct {
	HookTimeout time.Duration
}

func NewService(
	txm repository.TxManager,
	patients *patientsvc.Service,
	visits *visitsvc.Service,
	consents *consent.Service,
	appointments *appointmentsvc.Service,
	apptRepo repository.AppointmentRepository,
	outbox repository.OutboxRepository,
	calendarSvc calendar.Service,
	emailSvc email.Service,
	authz Authorizer,
	m *metrics.Metrics,
	logger *zerolog.Logger,
	cfg Config,
) *Service {
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = 10 * time.Second
	}
	return &Service{
		txm:          txm,
		patients:     patients,
		visits:       visits,
		consents:     consents,
		appointments: appointments,
		apptRepo:     apptRepo,
		outbox:       outbox,
		calendar:     calendarSvc,
		email:        emailSvc,
		authz:        authz,
		metrics:      m,
		logger:       logger,
		hookTimeout:  cfg.HookTimeout,
	}
}

// CreateAppointment books a walk-in slot with no patient linkage.
func (s *Service) CreateAppointment(ctx context.Context, principal *auth.Principal, clinicID int64, req *model.CreateAppointmentRequest) (*model.AppointmentResult, error) {
	if !s.authz.IsClinicAuthorized(ctx, clinicID, principal) {
		return nil, apperrors.NewAuthorization("caller is not entitled to this clinic")
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.NewValidation("invalid date", err)
	}
	if _, err := model.ParseClock(req.Time); err != nil {
		return nil, apperrors.NewValidation("invalid time", err)
	}

	apt := &model.Appointment{
		ClinicID:     clinicID,
		VisitorName:  req.VisitorName,
		VisitorPhone: req.VisitorPhone,
		Date:         date,
		Time:         req.Time,
		Status:       model.AppointmentStatusScheduled,
	}

	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		if err := s.apptRepo.Create(ctx, apt); err != nil {
			return err
		}
		return s.appendEvent(ctx, model.EventAppointmentCreated, apt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}
	s.metrics.AppointmentsBooked.WithLabelValues("walk_in").Inc()

	result := &model.AppointmentResult{Appointment: apt}
	flags := s.runPostCommit(ctx, []postCommitHook{
		s.calendarCreateHook(apt),
	})
	result.CalendarSynced = flags[hookCalendar]
	return result, nil
}

// CreateFollowUp books an appointment tied to a patient record, either an
// existing HFID or an inline new-patient registration, issuing the
// requested consent forms in the same transaction.
func (s *Service) CreateFollowUp(ctx context.Context, principal *auth.Principal, clinicID int64, req *model.FollowUpRequest) (*model.AppointmentResult, error) {
	if !s.authz.IsClinicAuthorized(ctx, clinicID, principal) {
		return nil, apperrors.NewAuthorization("caller is not entitled to this clinic")
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.NewValidation("invalid date", err)
	}
	if _, err := model.ParseClock(req.Time); err != nil {
		return nil, apperrors.NewValidation("invalid time", err)
	}
	if req.HFID == "" && req.NewPatient == nil {
		return nil, apperrors.NewValidation("either hfid or new_patient is required", nil)
	}

	var (
		pat        *model.Patient
		vis        *model.Visit
		issuances  []*model.ConsentFormIssuance
		apt        *model.Appointment
		newPatient bool
	)

	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		if req.HFID != "" {
			pat, err = s.patients.Resolve(ctx, req.HFID, "")
			if err != nil {
				return err
			}
			dup, err := s.visits.HasVisitInClinic(ctx, pat.ID, clinicID)
			if err != nil {
				return err
			}
			if dup {
				return apperrors.NewConflict("patient already has a visit in this clinic", req.HFID)
			}
		} else {
			pat, err = s.patients.Register(ctx, req.NewPatient)
			if err != nil {
				return err
			}
			newPatient = true
		}

		vis, err = s.visits.EnsureVisit(ctx, pat.ID, clinicID, date, req.Time)
		if err != nil {
			return err
		}

		// all-or-nothing, and before the appointment row exists so an
		// unknown title leaves nothing behind
		issuances, err = s.consents.Issue(ctx, vis, clinicID, req.ConsentFormTitles)
		if err != nil {
			return err
		}

		apt = &model.Appointment{
			ClinicID:     clinicID,
			VisitorName:  pat.Name,
			VisitorPhone: pat.Phone,
			Date:         date,
			Time:         req.Time,
			Status:       model.AppointmentStatusScheduled,
		}
		if err := s.apptRepo.Create(ctx, apt); err != nil {
			return err
		}

		if err := s.appendEvent(ctx, model.EventAppointmentCreated, apt); err != nil {
			return err
		}
		if len(issuances) > 0 {
			if err := s.appendEvent(ctx, model.EventConsentIssued, issuances); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AppointmentsBooked.WithLabelValues("follow_up").Inc()

	links := make([]model.ConsentLink, 0, len(issuances))
	for _, issuance := range issuances {
		links = append(links, model.ConsentLink{
			Title: issuance.Title,
			URL:   s.consents.BuildLink(issuance, pat.HFID),
		})
	}

	result := &model.AppointmentResult{
		Appointment:  apt,
		Patient:      pat,
		Visit:        vis,
		ConsentLinks: links,
		NewPatient:   newPatient,
	}

	hooks := []postCommitHook{s.calendarCreateHook(apt)}
	if pat.Email != nil && *pat.Email != "" {
		hooks = append(hooks, s.confirmationEmailHook(apt, pat, links))
	}
	flags := s.runPostCommit(ctx, hooks)
	result.CalendarSynced = flags[hookCalendar]
	result.EmailSent = flags[hookEmail]
	return result, nil
}

// UpdateStatus applies a guarded status transition, optionally linking a
// patient identity at the same time.
func (s *Service) UpdateStatus(ctx context.Context, principal *auth.Principal, clinicID int64, appointmentID uuid.UUID, req *model.UpdateStatusRequest) (*model.AppointmentResult, error) {
	if !s.authz.IsClinicAuthorized(ctx, clinicID, principal) {
		return nil, apperrors.NewAuthorization("caller is not entitled to this clinic")
	}
	if !req.Status.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown status %q", req.Status), nil)
	}

	apt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.ClinicID != clinicID {
		return nil, apperrors.NewNotFound("appointment", nil)
	}

	var (
		pat *model.Patient
		vis *model.Visit
	)

	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		// identity linking is independent of which transition is requested
		if req.HFID != "" {
			pat, err = s.patients.Resolve(ctx, req.HFID, apt.VisitorName)
			if err != nil {
				return err
			}
			vis, err = s.visits.EnsureVisit(ctx, pat.ID, apt.ClinicID, apt.Date, apt.Time)
			if err != nil {
				return err
			}
		}

		if err := s.appointments.Transition(ctx, apt, req.Status, req.Treatment); err != nil {
			return err
		}
		return s.appendEvent(ctx, model.EventAppointmentStatusChanged, apt)
	})
	if err != nil {
		return nil, err
	}

	result := &model.AppointmentResult{
		Appointment: apt,
		Patient:     pat,
		Visit:       vis,
	}

	if hook, ok := s.calendarStatusHook(apt); ok {
		flags := s.runPostCommit(ctx, []postCommitHook{hook})
		result.CalendarSynced = flags[hookCalendar]
	}
	return result, nil
}

// IssueConsentForms issues additional consent forms against an existing
// visit, for forms requested after the appointment was booked. The caller
// is authorized against the visit's clinic.
func (s *Service) IssueConsentForms(ctx context.Context, principal *auth.Principal, visitID uuid.UUID, titles []string) ([]model.ConsentLink, error) {
	vis, err := s.visits.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !s.authz.IsClinicAuthorized(ctx, vis.ClinicID, principal) {
		return nil, apperrors.NewAuthorization("caller is not entitled to this clinic")
	}

	pat, err := s.patients.Get(ctx, vis.PatientID)
	if err != nil {
		return nil, err
	}

	var issuances []*model.ConsentFormIssuance
	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		issuances, err = s.consents.Issue(ctx, vis, vis.ClinicID, titles)
		if err != nil {
			return err
		}
		if len(issuances) == 0 {
			return nil
		}
		return s.appendEvent(ctx, model.EventConsentIssued, issuances)
	})
	if err != nil {
		return nil, err
	}

	links := make([]model.ConsentLink, 0, len(issuances))
	for _, issuance := range issuances {
		links = append(links, model.ConsentLink{
			Title: issuance.Title,
			URL:   s.consents.BuildLink(issuance, pat.HFID),
		})
	}
	return links, nil
}

// Delete removes an appointment row entirely, then best-effort cleans up
// the linked visit and calendar event as compensating actions.
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, appointmentID uuid.UUID) error {
	apt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	if !s.authz.IsClinicAuthorized(ctx, apt.ClinicID, principal) {
		return apperrors.NewAuthorization("caller is not entitled to this clinic")
	}

	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		if err := s.apptRepo.Delete(ctx, appointmentID); err != nil {
			return err
		}
		return s.appendEvent(ctx, model.EventAppointmentDeleted, apt)
	})
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	hooks := []postCommitHook{s.visitCleanupHook(apt)}
	if apt.CalendarEventID != nil {
		hooks = append(hooks, s.calendarDeleteHook(apt))
	}
	s.runPostCommit(ctx, hooks)
	return nil
}

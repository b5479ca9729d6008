package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hfiles/clinic-api/internal/model"
)

// Sentinel errors surfaced by all implementations.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned on a uniqueness-constraint violation.
	// Callers doing find-or-create treat it as "lost the race" and re-read.
	ErrDuplicate = errors.New("duplicate record")
)

// TxManager runs a function inside one database transaction. The context
// passed to fn carries the transaction; repository calls made with it join
// the transaction automatically.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByHFID(ctx context.Context, hfid string) (*model.Patient, error)
		FindByPhone(ctx context.Context, phone string) (*model.Patient, error)
		UpdateName(ctx context.Context, id uuid.UUID, name string) error
		ExistsByPhone(ctx context.Context, phone string) (bool, error)
		ExistsByEmail(ctx context.Context, email string) (bool, error)
		CreateSubscription(ctx context.Context, sub *model.Subscription) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// UpdateStatus writes the new status only while the row is still in
		// from; a concurrent transition that got there first makes this a
		// no-op reported as ErrNotFound.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, treatment *string) error
		SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, clinicID int64, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	}

	VisitRepository interface {
		Create(ctx context.Context, visit *model.Visit) error
		Get(ctx context.Context, id uuid.UUID) (*model.Visit, error)
		Find(ctx context.Context, patientID uuid.UUID, date time.Time, timeOfDay string) (*model.Visit, error)
		FindForClinic(ctx context.Context, patientID uuid.UUID, clinicID int64, date time.Time, timeOfDay string) (*model.Visit, error)
		ExistsForClinic(ctx context.Context, patientID uuid.UUID, clinicID int64) (bool, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	ConsentRepository interface {
		ListTemplates(ctx context.Context, clinicID int64) ([]*model.ConsentFormTemplate, error)
		CreateIssuance(ctx context.Context, issuance *model.ConsentFormIssuance) error
		GetIssuance(ctx context.Context, id uuid.UUID) (*model.ConsentFormIssuance, error)
		ListIssuancesByVisit(ctx context.Context, visitID uuid.UUID) ([]*model.ConsentFormIssuance, error)
		SetDocumentURL(ctx context.Context, id uuid.UUID, url string) error
		MarkVerified(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		MarkForRetry(ctx context.Context, id uuid.UUID, retryAt time.Time, errorMessage *string) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

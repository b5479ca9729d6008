package calendar

import (
	"context"
	"time"
)

// Event describes an appointment slot pushed to the external calendar.
type Event struct {
	ClinicID    int64
	Title       string
	PatientName string
	Date        time.Time
	Time        string
	Phone       string
}

// Service is the external calendar collaborator. All methods are
// best-effort from the caller's point of view: errors are logged and
// reflected only as response flags, never as operation failures.
type Service interface {
	CreateEvent(ctx context.Context, event *Event) (string, error)
	UpdateEvent(ctx context.Context, clinicID int64, eventID string, status string) error
	CancelEvent(ctx context.Context, clinicID int64, eventID string) error
	DeleteEvent(ctx context.Context, clinicID int64, eventID string) error
}

// Noop is a Service that does nothing, for deployments without a
// connected calendar.
type Noop struct{}

func (Noop) CreateEvent(context.Context, *Event) (string, error) { return "", nil }

func (Noop) UpdateEvent(context.Context, int64, string, string) error { return nil }

func (Noop) CancelEvent(context.Context, int64, string) error { return nil }

func (Noop) DeleteEvent(context.Context, int64, string) error { return nil }

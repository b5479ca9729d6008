package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCanceled  AppointmentStatus = "canceled"
	AppointmentStatusAbsent    AppointmentStatus = "absent"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted,
		AppointmentStatusCanceled, AppointmentStatusAbsent:
		return true
	}
	return false
}

// Appointment is a clinic booking. Date holds the calendar date at
// midnight; Time holds the HH:mm literal.
type Appointment struct {
	Base
	ClinicID        int64             `db:"clinic_id" json:"clinic_id"`
	VisitorName     string            `db:"visitor_name" json:"visitor_name"`
	VisitorPhone    string            `db:"visitor_phone" json:"visitor_phone"`
	Date            time.Time         `db:"date" json:"date"`
	Time            string            `db:"time" json:"time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Treatment       *string           `db:"treatment" json:"treatment,omitempty"`
	CalendarEventID *string           `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
}

// StartsAt returns the wall-clock instant the appointment is booked for.
func (a *Appointment) StartsAt() time.Time {
	at, err := CombineDateClock(a.Date, a.Time)
	if err != nil {
		return a.Date
	}
	return at
}

// CreateAppointmentRequest books a walk-in slot with no patient linkage.
type CreateAppointmentRequest struct {
	VisitorName  string `json:"visitor_name" validate:"required"`
	VisitorPhone string `json:"visitor_phone" validate:"required"`
	Date         string `json:"date" validate:"required"`
	Time         string `json:"time" validate:"required"`
}

// FollowUpRequest books an appointment tied to a patient record, either by
// HFID or by registering a new patient inline.
type FollowUpRequest struct {
	HFID             string            `json:"hfid"`
	NewPatient       *NewPatientFields `json:"new_patient,omitempty"`
	Date             string            `json:"date" validate:"required"`
	Time             string            `json:"time" validate:"required"`
	ConsentFormTitles []string         `json:"consent_form_titles"`
}

// UpdateStatusRequest drives a state-machine transition, optionally
// linking a patient identity at the same time.
type UpdateStatusRequest struct {
	Status    AppointmentStatus `json:"status" validate:"required"`
	HFID      string            `json:"hfid"`
	Treatment string            `json:"treatment"`
}

// IssueConsentsRequest issues consent forms against an existing visit,
// outside any booking flow.
type IssueConsentsRequest struct {
	ConsentFormTitles []string `json:"consent_form_titles" validate:"required,min=1"`
}

// ConsentLink pairs an issued form title with its signed link.
type ConsentLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// AppointmentResult is the success payload for booking and status
// operations. CalendarSynced and EmailSent report best-effort outcomes and
// never affect the operation's success.
type AppointmentResult struct {
	Appointment    *Appointment  `json:"appointment"`
	Patient        *Patient      `json:"patient,omitempty"`
	Visit          *Visit        `json:"visit,omitempty"`
	ConsentLinks   []ConsentLink `json:"consent_links,omitempty"`
	NewPatient     bool          `json:"new_patient"`
	CalendarSynced bool          `json:"calendar_synced"`
	EmailSent      bool          `json:"email_sent"`
}

// AppointmentFilters narrows appointment listings.
type AppointmentFilters struct {
	Status    AppointmentStatus
	StartDate time.Time
	EndDate   time.Time
	Page      Pagination
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Visit is the clinical encounter record a booking may produce. At most
// one Visit exists per (patient, date, time).
type Visit struct {
	Base
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	ClinicID  int64     `db:"clinic_id" json:"clinic_id"`
	Date      time.Time `db:"date" json:"date"`
	Time      string    `db:"time" json:"time"`

	Consents []*ConsentFormIssuance `db:"-" json:"consents,omitempty"`
}

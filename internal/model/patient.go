package model

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionUnlimited is the sentinel expiry for the default plan
// attached to newly registered patients.
var SubscriptionUnlimited = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Patient is the canonical record behind an externally issued HFID.
type Patient struct {
	Base
	HFID        string     `db:"hfid" json:"hfid"`
	Name        string     `db:"name" json:"name"`
	Phone       string     `db:"phone" json:"phone"`
	CountryCode string     `db:"country_code" json:"country_code"`
	Email       *string    `db:"email" json:"email,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
}

// Subscription is the plan record created alongside a new registration.
type Subscription struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Plan      string    `db:"plan" json:"plan"`
	StartedAt time.Time `db:"started_at" json:"started_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// NewPatientFields carries the registration data for a patient without an
// existing HFID.
type NewPatientFields struct {
	Name        string `json:"name" validate:"required"`
	DateOfBirth string `json:"date_of_birth" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	CountryCode string `json:"country_code" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
}

package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/hfiles/clinic-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

type appointmentRepository struct {
	BaseRepository
}

type visitRepository struct {
	BaseRepository
}

type consentRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewVisitRepository(db *sqlx.DB) repository.VisitRepository {
	return &visitRepository{NewBaseRepository(db)}
}

func NewConsentRepository(db *sqlx.DB) repository.ConsentRepository {
	return &consentRepository{NewBaseRepository(db)}
}

func NewTxManager(db *sqlx.DB) repository.TxManager {
	base := NewBaseRepository(db)
	return &base
}

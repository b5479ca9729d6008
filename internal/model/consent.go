package model

import (
	"github.com/google/uuid"
)

// ConsentFormTemplate is a clinic-scoped catalog entry. Titles are matched
// case-insensitively.
type ConsentFormTemplate struct {
	ID       uuid.UUID `db:"id" json:"id"`
	ClinicID int64     `db:"clinic_id" json:"clinic_id"`
	Title    string    `db:"title" json:"title"`
}

// ConsentFormIssuance is one template instance sent to a patient for a
// specific visit. Verified only ever flips false -> true, and only after a
// document reference exists.
type ConsentFormIssuance struct {
	Base
	VisitID     uuid.UUID `db:"visit_id" json:"visit_id"`
	TemplateID  uuid.UUID `db:"template_id" json:"template_id"`
	Title       string    `db:"title" json:"title"`
	DocumentURL *string   `db:"document_url" json:"document_url,omitempty"`
	Verified    bool      `db:"verified" json:"verified"`
}

// Submitted reports whether a signed document has been attached.
func (c *ConsentFormIssuance) Submitted() bool {
	return c.DocumentURL != nil && *c.DocumentURL != ""
}

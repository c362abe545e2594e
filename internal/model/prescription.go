package model

import (
	"github.com/google/uuid"
)

type PrescriptionItem struct {
	Medicine  string `json:"medicine"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// Prescription links to the appointment it was written for; writing one is
// the precondition for marking the appointment seen.
type Prescription struct {
	Base
	AppointmentID uuid.UUID          `db:"appointment_id" json:"appointment_id"`
	DoctorID      uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	PatientID     uuid.UUID          `db:"patient_id" json:"patient_id"`
	Items         []PrescriptionItem `db:"-" json:"items"`
	ItemsJSON     []byte             `db:"items" json:"-"`
	Notes         string             `db:"notes" json:"notes,omitempty"`
}

type CreatePrescriptionRequest struct {
	AppointmentID uuid.UUID          `json:"appointment_id" binding:"required" validate:"required"`
	Items         []PrescriptionItem `json:"items" binding:"required" validate:"required,min=1"`
	Notes         string             `json:"notes" validate:"max=1000"`
}

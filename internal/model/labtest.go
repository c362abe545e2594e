package model

import (
	"time"

	"github.com/google/uuid"
)

// LabTest is a catalog entry, not a booking.
type LabTest struct {
	Base
	Name            string  `db:"name" json:"name"`
	Description     string  `db:"description" json:"description,omitempty"`
	Price           float64 `db:"price" json:"price"`
	FastingRequired bool    `db:"fasting_required" json:"fasting_required"`
	ReportHours     int     `db:"report_hours" json:"report_hours"`
	StartTime       string  `db:"start_time" json:"start_time"` // lab operating hours
	EndTime         string  `db:"end_time" json:"end_time"`
}

type LabBookingStatus string

const (
	LabBookingPending   LabBookingStatus = "pending"
	LabBookingCompleted LabBookingStatus = "completed"
	LabBookingCancelled LabBookingStatus = "cancelled"
)

// LabBooking mirrors Appointment but is keyed by test catalog entry. Payment
// status is recorded, never enforced. ReportURL is set when the booking is
// completed and a generated report has been stored.
type LabBooking struct {
	Base
	TestID        uuid.UUID        `db:"test_id" json:"test_id"`
	PatientID     uuid.UUID        `db:"patient_id" json:"patient_id"`
	Date          time.Time        `db:"date" json:"date"`
	TimeSlot      string           `db:"time_slot" json:"time_slot"`
	PatientCount  int              `db:"patient_count" json:"patient_count"`
	TotalPrice    float64          `db:"total_price" json:"total_price"`
	Status        LabBookingStatus `db:"status" json:"status"`
	PaymentStatus string           `db:"payment_status" json:"payment_status"`
	ReportURL     *string          `db:"report_url" json:"report_url,omitempty"`
	ReportFileID  *string          `db:"report_file_id" json:"report_file_id,omitempty"`
}

type CreateLabBookingRequest struct {
	TestID       uuid.UUID `json:"test_id" binding:"required" validate:"required"`
	Date         string    `json:"date" binding:"required" validate:"required"`
	TimeSlot     string    `json:"time_slot" binding:"required" validate:"required"`
	PatientCount int       `json:"patient_count" binding:"required,min=1" validate:"required,min=1,max=10"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type LeaveStatus string

const (
	// A leave is approved as soon as it is created; there is no
	// approval workflow.
	LeaveStatusApproved  LeaveStatus = "approved"
	LeaveStatusCancelled LeaveStatus = "cancelled"
	LeaveStatusCompleted LeaveStatus = "completed"
)

// Leave is a doctor-declared interval of unavailability. At most one leave is
// the doctor's current leave at a time; the doctors table carries the
// projection.
type Leave struct {
	Base
	DoctorID  uuid.UUID   `db:"doctor_id" json:"doctor_id"`
	StartDate time.Time   `db:"start_date" json:"start_date"`
	EndDate   time.Time   `db:"end_date" json:"end_date"`
	Reason    string      `db:"reason" json:"reason"`
	Status    LeaveStatus `db:"status" json:"status"`
}

// Covers reports whether the given date falls within [StartDate, EndDate]
// inclusive, compared at day granularity.
func (l *Leave) Covers(date time.Time) bool {
	day := date.Format(DateOnly)
	return day >= l.StartDate.Format(DateOnly) && day <= l.EndDate.Format(DateOnly)
}

type CreateLeaveRequest struct {
	StartDate string `json:"start_date" binding:"required" validate:"required"`
	EndDate   string `json:"end_date" binding:"required" validate:"required"`
	Reason    string `json:"reason" binding:"required" validate:"required,max=500"`
}

// AffectedAppointment is the minimal snapshot of an appointment caught inside
// a leave interval, returned to the doctor UI and attached to patient
// notifications.
type AffectedAppointment struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Date          time.Time `json:"date"`
	TimeSlot      string    `json:"time_slot"`
}

// LeaveCascadeResult is the best-effort outcome of a leave conflict scan.
// Failed lists appointments the cascade could not update; their presence
// never aborts processing of the rest.
type LeaveCascadeResult struct {
	AffectedCount        int                   `json:"affected_count"`
	AffectedAppointments []AffectedAppointment `json:"affected_appointments"`
	Failed               []uuid.UUID           `json:"failed,omitempty"`
}

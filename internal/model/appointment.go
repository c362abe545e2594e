package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending         AppointmentStatus = "pending"
	AppointmentStatusApproved        AppointmentStatus = "approved"
	AppointmentStatusSeen            AppointmentStatus = "seen"
	AppointmentStatusCancelled       AppointmentStatus = "cancelled"
	AppointmentStatusAffectedByLeave AppointmentStatus = "affected_by_leave"
)

type RescheduleStatus string

const (
	ReschedulePending  RescheduleStatus = "pending"
	RescheduleAccepted RescheduleStatus = "accepted"
	RescheduleRejected RescheduleStatus = "rejected"
)

// Appointment belongs to one doctor and one patient. RescheduleStatus and the
// suggested fields are only meaningful while Status is cancelled; readers must
// treat them as undefined otherwise.
type Appointment struct {
	Base
	DoctorID  uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID         `db:"patient_id" json:"patient_id"`
	Date      time.Time         `db:"date" json:"date"`
	TimeSlot  string            `db:"time_slot" json:"time_slot"`
	Problem   string            `db:"problem" json:"problem,omitempty"`
	Status    AppointmentStatus `db:"status" json:"status"`

	RescheduleStatus   *RescheduleStatus `db:"reschedule_status" json:"reschedule_status,omitempty"`
	SuggestedDate      *time.Time        `db:"suggested_date" json:"suggested_date,omitempty"`
	SuggestedTimeSlot  *string           `db:"suggested_time_slot" json:"suggested_time_slot,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
}

// Terminal reports whether no further transitions are allowed.
func (a *Appointment) Terminal() bool {
	return a.Status == AppointmentStatusSeen
}

type CreateAppointmentRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required" validate:"required"`
	Date     string    `json:"date" binding:"required" validate:"required"`
	TimeSlot string    `json:"time_slot" binding:"required" validate:"required"`
	Problem  string    `json:"problem" validate:"max=1000"`
}

// CancelAppointmentRequest carries an optional suggested replacement slot.
// When one is supplied the cancellation opens the reschedule flow.
type CancelAppointmentRequest struct {
	Reason            string `json:"reason" binding:"required" validate:"required,max=500"`
	SuggestedDate     string `json:"suggested_date,omitempty"`
	SuggestedTimeSlot string `json:"suggested_time_slot,omitempty"`
}

type AppointmentFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	StartDate time.Time
	EndDate   time.Time
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Doctor carries the schedule configuration the slot catalog is derived from,
// plus a denormalized projection of the doctor's current leave. The projection
// is kept consistent with the leaves table by every leave mutation path
// (create, cancel, expiry sweep).
type Doctor struct {
	Base
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Specialty string    `db:"specialty" json:"specialty"`
	Fee       float64   `db:"fee" json:"fee"`

	// Working days as weekday names ("Monday", ...).
	WorkingDays pq.StringArray `db:"working_days" json:"working_days"`
	StartTime   string         `db:"start_time" json:"start_time"` // "HH:MM"
	EndTime     string         `db:"end_time" json:"end_time"`     // "HH:MM"

	OnLeave        bool       `db:"on_leave" json:"on_leave"`
	LeaveStartDate *time.Time `db:"leave_start_date" json:"leave_start_date,omitempty"`
	LeaveEndDate   *time.Time `db:"leave_end_date" json:"leave_end_date,omitempty"`
	LeaveReason    *string    `db:"leave_reason" json:"leave_reason,omitempty"`
	CurrentLeaveID *uuid.UUID `db:"current_leave_id" json:"current_leave_id,omitempty"`
}

// WorksOn reports whether the doctor's working-days set contains the
// given date's weekday.
func (d *Doctor) WorksOn(date time.Time) bool {
	weekday := date.Weekday().String()
	for _, day := range d.WorkingDays {
		if day == weekday {
			return true
		}
	}
	return false
}

// OnLeaveAt reports whether the leave projection covers the given date,
// [leave_start_date, leave_end_date] inclusive.
func (d *Doctor) OnLeaveAt(date time.Time) bool {
	if !d.OnLeave || d.LeaveStartDate == nil || d.LeaveEndDate == nil {
		return false
	}
	day := date.Format(DateOnly)
	return day >= d.LeaveStartDate.Format(DateOnly) && day <= d.LeaveEndDate.Format(DateOnly)
}

type CreateDoctorRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required" validate:"required"`
	Name        string    `json:"name" binding:"required" validate:"required,max=100"`
	Specialty   string    `json:"specialty" binding:"required" validate:"required,max=100"`
	Fee         float64   `json:"fee" validate:"gte=0"`
	WorkingDays []string  `json:"working_days" binding:"required" validate:"required,min=1"`
	StartTime   string    `json:"start_time" binding:"required" validate:"required"`
	EndTime     string    `json:"end_time" binding:"required" validate:"required"`
}

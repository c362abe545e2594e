package model

type SlotStatus string

const (
	SlotAvailable    SlotStatus = "available"
	SlotBooked       SlotStatus = "booked"
	SlotPast         SlotStatus = "past"
	SlotLeaveBlocked SlotStatus = "leave_blocked"
)

// Slot is a derived value, never persisted. It is recomputed on every read by
// combining the doctor's working hours with same-day appointment and leave
// records.
type Slot struct {
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	Status    SlotStatus `json:"status"`
}

// Key is the slot string bookings are stored and compared under.
func (s Slot) Key() string {
	return s.StartTime + " - " + s.EndTime
}

// DayAvailability is the full classified catalog for one doctor and date.
// When OnLeave is set every slot is leave_blocked and LeaveReason explains why.
type DayAvailability struct {
	Date        string `json:"date"`
	OnLeave     bool   `json:"on_leave"`
	LeaveReason string `json:"leave_reason,omitempty"`
	Slots       []Slot `json:"slots"`
}

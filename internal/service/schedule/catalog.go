package schedule

import (
	"fmt"
	"time"

	"github.com/medisuite/portal-api/internal/model"
)

// SlotDuration is fixed; working hours that are not an exact multiple of it
// lose the final partial slot.
const SlotDuration = 60 * time.Minute

// Catalog derives the bookable slots for one calendar date from a weekday set
// and working hours. The weekday check lives here so callers cannot forget it:
// a date outside the working-days set yields an empty catalog. An empty
// workingDays set means every day is a working day (lab operating hours).
func Catalog(workingDays []string, startTime, endTime string, date time.Time) []model.Slot {
	if len(workingDays) > 0 && !worksOn(workingDays, date) {
		return nil
	}

	start, err := t2m(startTime)
	if err != nil {
		return nil
	}
	end, err := t2m(endTime)
	if err != nil {
		return nil
	}

	step := int(SlotDuration.Minutes())

	var slots []model.Slot
	// Truncating loop: the final partial slot is dropped when the window is
	// not an exact multiple of the step.
	for t := start; t+step <= end; t += step {
		slots = append(slots, model.Slot{
			StartTime: m2t(t),
			EndTime:   m2t(t + step),
			Status:    model.SlotAvailable,
		})
	}
	return slots
}

// DoctorCatalog folds the doctor's configured schedule into Catalog.
func DoctorCatalog(doctor *model.Doctor, date time.Time) []model.Slot {
	return Catalog(doctor.WorkingDays, doctor.StartTime, doctor.EndTime, date)
}

func worksOn(days []string, date time.Time) bool {
	weekday := date.Weekday().String()
	for _, day := range days {
		if day == weekday {
			return true
		}
	}
	return false
}

// t2m parses "HH:MM" into minutes since midnight.
func t2m(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", clock)
	}
	return h*60 + m, nil
}

func m2t(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

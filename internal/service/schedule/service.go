package schedule

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/google/uuid"
	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
)

const (
	doctorCacheTTL     = 5 * time.Minute
	doctorCacheCleanup = 10 * time.Minute
)

// Service computes slot-level availability for doctors. Classification is
// strictly ordered: a leave day blocks every slot regardless of bookings, a
// booked slot stays booked even when it is also in the past.
type Service struct {
	doctorRepo repository.DoctorRepository
	apptRepo   repository.AppointmentRepository
	cache      *gocache.Cache
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(doctorRepo repository.DoctorRepository, apptRepo repository.AppointmentRepository, logger *logger.Logger) *Service {
	return &Service{
		doctorRepo: doctorRepo,
		apptRepo:   apptRepo,
		cache:      gocache.New(doctorCacheTTL, doctorCacheCleanup),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// InvalidateDoctor drops the cached doctor record. Called after anything that
// changes the doctor's schedule or leave projection.
func (s *Service) InvalidateDoctor(doctorID uuid.UUID) {
	s.cache.Delete(doctorID.String())
}

func (s *Service) doctor(ctx context.Context, doctorID uuid.UUID) (*model.Doctor, error) {
	if cached, found := s.cache.Get(doctorID.String()); found {
		return cached.(*model.Doctor), nil
	}
	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(doctorID.String(), doctor, gocache.DefaultExpiration)
	return doctor, nil
}

// DayAvailability returns the doctor's full slot catalog for one date with
// each slot classified. A failure to read existing bookings surfaces as a
// data-unavailable error rather than a default of "available".
func (s *Service) DayAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time) (*model.DayAvailability, error) {
	doctor, err := s.doctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	slots := DoctorCatalog(doctor, date)
	day := &model.DayAvailability{
		Date:  date.Format(model.DateOnly),
		Slots: slots,
	}

	if doctor.OnLeaveAt(date) {
		day.OnLeave = true
		day.LeaveReason = leaveReason(doctor)
		for i := range day.Slots {
			day.Slots[i].Status = model.SlotLeaveBlocked
		}
		return day, nil
	}

	booked, err := s.bookedKeys(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	for i := range day.Slots {
		day.Slots[i].Status = s.classify(day.Slots[i], booked, date)
	}
	return day, nil
}

// CheckSlot classifies one requested slot. The requested value may be a full
// slot key ("10:00 - 11:00") or just the start time ("10:00"). An unknown slot
// is a validation error: it falls outside the doctor's working hours.
func (s *Service) CheckSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, requested string) (*model.Slot, error) {
	doctor, err := s.doctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	slot := findSlot(DoctorCatalog(doctor, date), requested)
	if slot == nil {
		return nil, apperrors.NewValidation("requested slot is outside the doctor's working hours", nil)
	}

	if doctor.OnLeaveAt(date) {
		slot.Status = model.SlotLeaveBlocked
		return slot, apperrors.NewDoctorUnavailable(leaveReason(doctor))
	}

	booked, err := s.bookedKeys(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	slot.Status = s.classify(*slot, booked, date)
	switch slot.Status {
	case model.SlotBooked:
		return slot, apperrors.NewSlotTaken(slot.Key())
	case model.SlotPast:
		return slot, apperrors.NewSlotInPast(slot.Key())
	}
	return slot, nil
}

func (s *Service) bookedKeys(ctx context.Context, doctorID uuid.UUID, date time.Time) (map[string]bool, error) {
	appointments, err := s.apptRepo.GetForDoctorDate(ctx, doctorID, date)
	if err != nil {
		s.logger.Error(err, "failed to load bookings for availability check")
		return nil, apperrors.NewDataUnavailable(err)
	}
	booked := make(map[string]bool, len(appointments))
	for _, appt := range appointments {
		if appt.Status != model.AppointmentStatusCancelled {
			booked[appt.TimeSlot] = true
		}
	}
	return booked, nil
}

func (s *Service) classify(slot model.Slot, booked map[string]bool, date time.Time) model.SlotStatus {
	if booked[slot.Key()] {
		return model.SlotBooked
	}
	if s.elapsed(slot, date) {
		return model.SlotPast
	}
	return model.SlotAvailable
}

// elapsed reports whether the slot's start time has already passed. Only the
// current day needs a clock comparison; earlier dates are wholly past and
// later dates wholly future.
func (s *Service) elapsed(slot model.Slot, date time.Time) bool {
	now := s.now()
	today := now.Format(model.DateOnly)
	day := date.Format(model.DateOnly)
	if day < today {
		return true
	}
	if day > today {
		return false
	}
	start, err := t2m(slot.StartTime)
	if err != nil {
		return false
	}
	return now.Hour()*60+now.Minute() >= start
}

func leaveReason(doctor *model.Doctor) string {
	if doctor.LeaveReason == nil {
		return ""
	}
	return *doctor.LeaveReason
}

func findSlot(slots []model.Slot, requested string) *model.Slot {
	for i := range slots {
		if slots[i].Key() == requested || slots[i].StartTime == requested {
			found := slots[i]
			return &found
		}
	}
	return nil
}

package schedule

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisuite/portal-api/internal/model"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
)

type fakeDoctorRepo struct {
	doctor *model.Doctor
	err    error
	gets   int
}

func (f *fakeDoctorRepo) Create(ctx context.Context, d *model.Doctor) error { return nil }
func (f *fakeDoctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	f.gets++
	return f.doctor, f.err
}
func (f *fakeDoctorRepo) GetByUserID(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return f.doctor, f.err
}
func (f *fakeDoctorRepo) Update(ctx context.Context, d *model.Doctor) error { return nil }
func (f *fakeDoctorRepo) List(ctx context.Context, specialty string) ([]*model.Doctor, error) {
	return nil, nil
}
func (f *fakeDoctorRepo) SetLeaveProjection(ctx context.Context, id uuid.UUID, leave *model.Leave) error {
	return nil
}

type fakeApptRepo struct {
	appointments []*model.Appointment
	err          error
}

func (f *fakeApptRepo) CreateIfSlotFree(ctx context.Context, a *model.Appointment) (bool, error) {
	return true, nil
}
func (f *fakeApptRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return nil, nil
}
func (f *fakeApptRepo) Update(ctx context.Context, a *model.Appointment) error { return nil }
func (f *fakeApptRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}
func (f *fakeApptRepo) GetForDoctorDate(ctx context.Context, id uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	return f.appointments, f.err
}
func (f *fakeApptRepo) GetInDateRange(ctx context.Context, id uuid.UUID, start, end time.Time) ([]*model.Appointment, error) {
	return f.appointments, f.err
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func testDoctor() *model.Doctor {
	return &model.Doctor{
		Base:        model.Base{ID: uuid.New()},
		Name:        "Dr. Asha Rao",
		WorkingDays: []string{"Monday", "Wednesday", "Friday"},
		StartTime:   "09:00",
		EndTime:     "17:00",
	}
}

func onLeave(d *model.Doctor, from, to time.Time, reason string) *model.Doctor {
	leaveID := uuid.New()
	d.OnLeave = true
	d.LeaveStartDate = &from
	d.LeaveEndDate = &to
	d.LeaveReason = &reason
	d.CurrentLeaveID = &leaveID
	return d
}

func newTestService(doctors *fakeDoctorRepo, appts *fakeApptRepo) *Service {
	// Fixed clock: Monday 2026-03-02 at 12:30.
	return NewService(doctors, appts, testLogger()).WithClock(func() time.Time {
		return time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	})
}

func TestDayAvailabilityClassifiesSlots(t *testing.T) {
	doctor := testDoctor()
	appts := &fakeApptRepo{appointments: []*model.Appointment{
		{DoctorID: doctor.ID, Date: monday, TimeSlot: "14:00 - 15:00", Status: model.AppointmentStatusApproved},
		{DoctorID: doctor.ID, Date: monday, TimeSlot: "15:00 - 16:00", Status: model.AppointmentStatusCancelled},
	}}
	svc := newTestService(&fakeDoctorRepo{doctor: doctor}, appts)

	day, err := svc.DayAvailability(context.Background(), doctor.ID, monday)
	require.NoError(t, err)
	require.Len(t, day.Slots, 8)

	byKey := map[string]model.SlotStatus{}
	for _, slot := range day.Slots {
		byKey[slot.Key()] = slot.Status
	}

	// Clock is 12:30, so slots starting at or before 12:00 are past.
	assert.Equal(t, model.SlotPast, byKey["09:00 - 10:00"])
	assert.Equal(t, model.SlotPast, byKey["12:00 - 13:00"])
	assert.Equal(t, model.SlotAvailable, byKey["13:00 - 14:00"])
	assert.Equal(t, model.SlotBooked, byKey["14:00 - 15:00"])
	// A cancelled booking releases its slot.
	assert.Equal(t, model.SlotAvailable, byKey["15:00 - 16:00"])
}

func TestDayAvailabilityLeaveBlocksEverySlot(t *testing.T) {
	doctor := onLeave(testDoctor(), monday, monday.AddDate(0, 0, 2), "conference")
	appts := &fakeApptRepo{appointments: []*model.Appointment{
		{DoctorID: doctor.ID, Date: monday, TimeSlot: "14:00 - 15:00", Status: model.AppointmentStatusApproved},
	}}
	svc := newTestService(&fakeDoctorRepo{doctor: doctor}, appts)

	day, err := svc.DayAvailability(context.Background(), doctor.ID, monday)
	require.NoError(t, err)

	assert.True(t, day.OnLeave)
	assert.Equal(t, "conference", day.LeaveReason)
	for _, slot := range day.Slots {
		// Leave outranks booked and past.
		assert.Equal(t, model.SlotLeaveBlocked, slot.Status)
	}
}

func TestDayAvailabilityPastDateAllPast(t *testing.T) {
	doctor := testDoctor()
	svc := newTestService(&fakeDoctorRepo{doctor: doctor}, &fakeApptRepo{})

	friday := monday.AddDate(0, 0, -3) // previous Friday
	day, err := svc.DayAvailability(context.Background(), doctor.ID, friday)
	require.NoError(t, err)
	for _, slot := range day.Slots {
		assert.Equal(t, model.SlotPast, slot.Status)
	}
}

func TestDayAvailabilityNonWorkingDay(t *testing.T) {
	doctor := testDoctor()
	svc := newTestService(&fakeDoctorRepo{doctor: doctor}, &fakeApptRepo{})

	tuesday := monday.AddDate(0, 0, 1)
	day, err := svc.DayAvailability(context.Background(), doctor.ID, tuesday)
	require.NoError(t, err)
	assert.Empty(t, day.Slots)
}

func TestDayAvailabilityBookingReadFailure(t *testing.T) {
	doctor := testDoctor()
	appts := &fakeApptRepo{err: errors.New("connection refused")}
	svc := newTestService(&fakeDoctorRepo{doctor: doctor}, appts)

	_, err := svc.DayAvailability(context.Background(), doctor.ID, monday)
	require.Error(t, err)
	// Never report available when bookings cannot be read.
	assert.True(t, apperrors.Is(err, apperrors.ErrDataUnavailable))
}

func TestCheckSlot(t *testing.T) {
	doctor := testDoctor()
	appts := &fakeApptRepo{appointments: []*model.Appointment{
		{DoctorID: doctor.ID, Date: monday, TimeSlot: "14:00 - 15:00", Status: model.AppointmentStatusPending},
	}}
	svc := newTestService(&fakeDoctorRepo{doctor: doctor}, appts)
	ctx := context.Background()

	t.Run("available", func(t *testing.T) {
		slot, err := svc.CheckSlot(ctx, doctor.ID, monday, "13:00 - 14:00")
		require.NoError(t, err)
		assert.Equal(t, model.SlotAvailable, slot.Status)
	})

	t.Run("start time shorthand", func(t *testing.T) {
		slot, err := svc.CheckSlot(ctx, doctor.ID, monday, "13:00")
		require.NoError(t, err)
		assert.Equal(t, "13:00 - 14:00", slot.Key())
	})

	t.Run("booked", func(t *testing.T) {
		_, err := svc.CheckSlot(ctx, doctor.ID, monday, "14:00 - 15:00")
		assert.True(t, apperrors.Is(err, apperrors.ErrSlotTaken))
	})

	t.Run("past", func(t *testing.T) {
		_, err := svc.CheckSlot(ctx, doctor.ID, monday, "10:00 - 11:00")
		assert.True(t, apperrors.Is(err, apperrors.ErrSlotInPast))
	})

	t.Run("outside working hours", func(t *testing.T) {
		_, err := svc.CheckSlot(ctx, doctor.ID, monday, "20:00 - 21:00")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})
}

func TestCheckSlotOnLeave(t *testing.T) {
	doctor := onLeave(testDoctor(), monday, monday, "medical")
	svc := newTestService(&fakeDoctorRepo{doctor: doctor}, &fakeApptRepo{})

	_, err := svc.CheckSlot(context.Background(), doctor.ID, monday, "14:00 - 15:00")
	assert.True(t, apperrors.Is(err, apperrors.ErrDoctorUnavailable))
}

func TestDoctorLookupIsCached(t *testing.T) {
	doctor := testDoctor()
	repo := &fakeDoctorRepo{doctor: doctor}
	svc := newTestService(repo, &fakeApptRepo{})
	ctx := context.Background()

	_, err := svc.DayAvailability(ctx, doctor.ID, monday)
	require.NoError(t, err)
	_, err = svc.DayAvailability(ctx, doctor.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)

	svc.InvalidateDoctor(doctor.ID)
	_, err = svc.DayAvailability(ctx, doctor.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.gets)
}

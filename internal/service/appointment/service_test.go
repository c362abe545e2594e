package appointment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisuite/portal-api/internal/model"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
	"github.com/medisuite/portal-api/pkg/metrics"
)

// promauto registers against the default registry, so the package shares one
// instance across tests.
var testMetrics = metrics.New("appointment_test")

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type memoryApptRepo struct {
	appointments map[uuid.UUID]*model.Appointment
	updateErr    error
}

func newMemoryApptRepo() *memoryApptRepo {
	return &memoryApptRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (m *memoryApptRepo) CreateIfSlotFree(ctx context.Context, a *model.Appointment) (bool, error) {
	for _, existing := range m.appointments {
		if existing.DoctorID == a.DoctorID &&
			existing.Date.Equal(a.Date) &&
			existing.TimeSlot == a.TimeSlot &&
			existing.Status != model.AppointmentStatusCancelled {
			return false, nil
		}
	}
	clone := *a
	m.appointments[a.ID] = &clone
	return true, nil
}

func (m *memoryApptRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, apperrors.NewNotFound("appointment", nil)
	}
	clone := *a
	return &clone, nil
}

func (m *memoryApptRepo) Update(ctx context.Context, a *model.Appointment) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	clone := *a
	m.appointments[a.ID] = &clone
	return nil
}

func (m *memoryApptRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, a := range m.appointments {
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryApptRepo) GetForDoctorDate(ctx context.Context, id uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	return nil, nil
}

func (m *memoryApptRepo) GetInDateRange(ctx context.Context, id uuid.UUID, start, end time.Time) ([]*model.Appointment, error) {
	return nil, nil
}

type fakeDoctorRepo struct {
	doctor *model.Doctor
}

func (f *fakeDoctorRepo) Create(ctx context.Context, d *model.Doctor) error { return nil }
func (f *fakeDoctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return f.doctor, nil
}
func (f *fakeDoctorRepo) GetByUserID(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return f.doctor, nil
}
func (f *fakeDoctorRepo) Update(ctx context.Context, d *model.Doctor) error { return nil }
func (f *fakeDoctorRepo) List(ctx context.Context, specialty string) ([]*model.Doctor, error) {
	return nil, nil
}
func (f *fakeDoctorRepo) SetLeaveProjection(ctx context.Context, id uuid.UUID, leave *model.Leave) error {
	return nil
}

type fakePrescriptionRepo struct {
	byAppointment map[uuid.UUID]*model.Prescription
}

func (f *fakePrescriptionRepo) Create(ctx context.Context, p *model.Prescription) error { return nil }
func (f *fakePrescriptionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	return nil, apperrors.NewNotFound("prescription", nil)
}
func (f *fakePrescriptionRepo) GetByAppointment(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	if p, ok := f.byAppointment[id]; ok {
		return p, nil
	}
	return nil, apperrors.NewNotFound("prescription", nil)
}
func (f *fakePrescriptionRepo) ListForPatient(ctx context.Context, id uuid.UUID) ([]*model.Prescription, error) {
	return nil, nil
}

// fakeSchedule returns a canned classification per slot key.
type fakeSchedule struct {
	blocked map[string]error
}

func (f *fakeSchedule) CheckSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, requested string) (*model.Slot, error) {
	if err, ok := f.blocked[requested]; ok {
		return nil, err
	}
	slot := &model.Slot{StartTime: requested[:5], EndTime: "", Status: model.SlotAvailable}
	// Accept either a full key or a bare start time.
	if len(requested) > 5 {
		return &model.Slot{StartTime: requested[:5], EndTime: requested[8:], Status: model.SlotAvailable}, nil
	}
	var h, m int
	fmt.Sscanf(requested, "%d:%d", &h, &m)
	slot.EndTime = fmt.Sprintf("%02d:%02d", h+1, m)
	return slot, nil
}

func (f *fakeSchedule) InvalidateDoctor(doctorID uuid.UUID) {}

type recordingNotifier struct {
	sent []string
	err  error
}

func (r *recordingNotifier) Notify(ctx context.Context, userID uuid.UUID, subject, content string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, subject)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *memoryApptRepo
	notifier *recordingNotifier
	schedule *fakeSchedule
	rx       *fakePrescriptionRepo
	doctor   *model.Doctor
}

func newFixture() *fixture {
	doctor := &model.Doctor{
		Base:   model.Base{ID: uuid.New()},
		UserID: uuid.New(),
		Name:   "Dr. Asha Rao",
	}
	repo := newMemoryApptRepo()
	notifier := &recordingNotifier{}
	schedule := &fakeSchedule{blocked: map[string]error{}}
	rx := &fakePrescriptionRepo{byAppointment: map[uuid.UUID]*model.Prescription{}}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return &fixture{
		svc:      NewService(repo, &fakeDoctorRepo{doctor: doctor}, rx, schedule, notifier, testMetrics, log),
		repo:     repo,
		notifier: notifier,
		schedule: schedule,
		rx:       rx,
		doctor:   doctor,
	}
}

func (f *fixture) book(t *testing.T, slot string) *model.Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), uuid.New(), &model.CreateAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     monday.Format(model.DateOnly),
		TimeSlot: slot,
		Problem:  "persistent cough",
	})
	require.NoError(t, err)
	return appt
}

func TestBook(t *testing.T) {
	f := newFixture()

	appt := f.book(t, "10:00 - 11:00")
	assert.Equal(t, model.AppointmentStatusPending, appt.Status)
	assert.Equal(t, "10:00 - 11:00", appt.TimeSlot)
	assert.Equal(t, []string{"New appointment request"}, f.notifier.sent)
}

func TestBookRejectsBlockedSlot(t *testing.T) {
	f := newFixture()
	f.schedule.blocked["10:00 - 11:00"] = apperrors.NewDoctorUnavailable("conference")
	f.schedule.blocked["11:00 - 12:00"] = apperrors.NewSlotInPast("11:00 - 12:00")

	_, err := f.svc.Book(context.Background(), uuid.New(), &model.CreateAppointmentRequest{
		DoctorID: f.doctor.ID, Date: monday.Format(model.DateOnly), TimeSlot: "10:00 - 11:00",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrDoctorUnavailable))

	_, err = f.svc.Book(context.Background(), uuid.New(), &model.CreateAppointmentRequest{
		DoctorID: f.doctor.ID, Date: monday.Format(model.DateOnly), TimeSlot: "11:00 - 12:00",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotInPast))
	assert.Empty(t, f.notifier.sent)
}

func TestBookLosesRaceToConcurrentWriter(t *testing.T) {
	f := newFixture()
	f.book(t, "10:00 - 11:00")

	// The availability check passes but the conditional insert finds the
	// slot already held.
	_, err := f.svc.Book(context.Background(), uuid.New(), &model.CreateAppointmentRequest{
		DoctorID: f.doctor.ID, Date: monday.Format(model.DateOnly), TimeSlot: "10:00 - 11:00",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotTaken))
}

func TestBookRejectsMalformedDate(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Book(context.Background(), uuid.New(), &model.CreateAppointmentRequest{
		DoctorID: f.doctor.ID, Date: "03/02/2026", TimeSlot: "10:00 - 11:00",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestApprove(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")

	approved, err := f.svc.Approve(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusApproved, approved.Status)
	assert.Contains(t, f.notifier.sent, "Appointment confirmed")

	// Approving twice is not a valid transition.
	_, err = f.svc.Approve(context.Background(), appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")

	cancelled, err := f.svc.Cancel(context.Background(), appt.ID, &model.CancelAppointmentRequest{Reason: "emergency"})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "emergency", *cancelled.CancellationReason)

	sentBefore := len(f.notifier.sent)
	again, err := f.svc.Cancel(context.Background(), appt.ID, &model.CancelAppointmentRequest{Reason: "different reason"})
	require.NoError(t, err)
	assert.Equal(t, "emergency", *again.CancellationReason)
	// No second notification on the no-op path.
	assert.Len(t, f.notifier.sent, sentBefore)
}

func TestCancelSeenAppointmentFails(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")
	_, err := f.svc.Approve(context.Background(), appt.ID)
	require.NoError(t, err)
	f.rx.byAppointment[appt.ID] = &model.Prescription{}
	_, err = f.svc.MarkSeen(context.Background(), appt.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), appt.ID, &model.CancelAppointmentRequest{Reason: "late"})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestCancelReleasesSlotForRebooking(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")

	_, err := f.svc.Cancel(context.Background(), appt.ID, &model.CancelAppointmentRequest{Reason: "emergency"})
	require.NoError(t, err)

	rebooked := f.book(t, "10:00 - 11:00")
	assert.NotEqual(t, appt.ID, rebooked.ID)
}

func TestRescheduleRoundTrip(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")

	cancelled, err := f.svc.Cancel(context.Background(), appt.ID, &model.CancelAppointmentRequest{
		Reason:            "doctor unavailable",
		SuggestedDate:     monday.AddDate(0, 0, 2).Format(model.DateOnly),
		SuggestedTimeSlot: "11:00 - 12:00",
	})
	require.NoError(t, err)
	require.NotNil(t, cancelled.RescheduleStatus)
	assert.Equal(t, model.ReschedulePending, *cancelled.RescheduleStatus)

	accepted, err := f.svc.AcceptReschedule(context.Background(), appt.ID)
	require.NoError(t, err)
	// The doctor proposed the slot, so acceptance lands directly in approved.
	assert.Equal(t, model.AppointmentStatusApproved, accepted.Status)
	assert.Equal(t, "11:00 - 12:00", accepted.TimeSlot)
	assert.Equal(t, monday.AddDate(0, 0, 2).Format(model.DateOnly), accepted.Date.Format(model.DateOnly))
	assert.Nil(t, accepted.SuggestedDate)
	assert.Nil(t, accepted.SuggestedTimeSlot)
	assert.Equal(t, model.RescheduleAccepted, *accepted.RescheduleStatus)

	// Both sides hear about the move.
	assert.Contains(t, f.notifier.sent, "Reschedule accepted")
	assert.Contains(t, f.notifier.sent, "Appointment rescheduled")
}

func TestRejectReschedule(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")

	_, err := f.svc.Cancel(context.Background(), appt.ID, &model.CancelAppointmentRequest{
		Reason:            "doctor unavailable",
		SuggestedDate:     monday.AddDate(0, 0, 2).Format(model.DateOnly),
		SuggestedTimeSlot: "11:00 - 12:00",
	})
	require.NoError(t, err)

	rejected, err := f.svc.RejectReschedule(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, rejected.Status)
	assert.Equal(t, model.RescheduleRejected, *rejected.RescheduleStatus)
	assert.Contains(t, f.notifier.sent, "Reschedule declined")

	// The suggestion is closed; accepting afterwards fails.
	_, err = f.svc.AcceptReschedule(context.Background(), appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestAcceptRescheduleWithoutSuggestion(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")
	_, err := f.svc.Cancel(context.Background(), appt.ID, &model.CancelAppointmentRequest{Reason: "emergency"})
	require.NoError(t, err)

	_, err = f.svc.AcceptReschedule(context.Background(), appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestAcceptRescheduleTargetSlotTaken(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")

	_, err := f.svc.Cancel(context.Background(), appt.ID, &model.CancelAppointmentRequest{
		Reason:            "doctor unavailable",
		SuggestedDate:     monday.AddDate(0, 0, 2).Format(model.DateOnly),
		SuggestedTimeSlot: "11:00 - 12:00",
	})
	require.NoError(t, err)

	f.schedule.blocked["11:00 - 12:00"] = apperrors.NewSlotTaken("11:00 - 12:00")
	_, err = f.svc.AcceptReschedule(context.Background(), appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotTaken))
}

func TestMarkSeenRequiresPrescription(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")
	_, err := f.svc.Approve(context.Background(), appt.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkSeen(context.Background(), appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	f.rx.byAppointment[appt.ID] = &model.Prescription{}
	seen, err := f.svc.MarkSeen(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusSeen, seen.Status)
	assert.True(t, seen.Terminal())
}

func TestMarkSeenRequiresApproved(t *testing.T) {
	f := newFixture()
	appt := f.book(t, "10:00 - 11:00")

	_, err := f.svc.MarkSeen(context.Background(), appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestNotificationFailureDoesNotBlockBooking(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("smtp down")

	appt := f.book(t, "10:00 - 11:00")
	stored, err := f.svc.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, stored.Status)
}

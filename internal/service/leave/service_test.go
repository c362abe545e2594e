package leave

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
	"github.com/medisuite/portal-api/pkg/metrics"
)

var testMetrics = metrics.New("leave_test")

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type memoryLeaveRepo struct {
	leaves map[uuid.UUID]*model.Leave
	doctor *model.Doctor
}

func (m *memoryLeaveRepo) CreateAndProject(ctx context.Context, l *model.Leave) error {
	clone := *l
	m.leaves[l.ID] = &clone
	m.doctor.OnLeave = true
	m.doctor.LeaveStartDate = &clone.StartDate
	m.doctor.LeaveEndDate = &clone.EndDate
	m.doctor.LeaveReason = &clone.Reason
	m.doctor.CurrentLeaveID = &clone.ID
	return nil
}

func (m *memoryLeaveRepo) CloseAndClearProjection(ctx context.Context, l *model.Leave, status model.LeaveStatus) error {
	stored, ok := m.leaves[l.ID]
	if !ok {
		return apperrors.NewNotFound("leave", nil)
	}
	stored.Status = status
	if m.doctor.CurrentLeaveID != nil && *m.doctor.CurrentLeaveID == l.ID {
		m.doctor.OnLeave = false
		m.doctor.LeaveStartDate = nil
		m.doctor.LeaveEndDate = nil
		m.doctor.LeaveReason = nil
		m.doctor.CurrentLeaveID = nil
	}
	return nil
}

func (m *memoryLeaveRepo) Get(ctx context.Context, id uuid.UUID) (*model.Leave, error) {
	l, ok := m.leaves[id]
	if !ok {
		return nil, apperrors.NewNotFound("leave", nil)
	}
	clone := *l
	return &clone, nil
}

func (m *memoryLeaveRepo) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Leave, error) {
	var out []*model.Leave
	for _, l := range m.leaves {
		if l.DoctorID == doctorID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryLeaveRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Leave, error) {
	var out []*model.Leave
	for _, l := range m.leaves {
		if l.Status == model.LeaveStatusApproved && l.EndDate.Format(model.DateOnly) < now.Format(model.DateOnly) {
			out = append(out, l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeApptRepo struct {
	appointments []*model.Appointment
	rangeErr     error
	failUpdate   map[uuid.UUID]error
	updated      []*model.Appointment
}

func (f *fakeApptRepo) CreateIfSlotFree(ctx context.Context, a *model.Appointment) (bool, error) {
	return true, nil
}
func (f *fakeApptRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return nil, nil
}
func (f *fakeApptRepo) Update(ctx context.Context, a *model.Appointment) error {
	if err, ok := f.failUpdate[a.ID]; ok {
		return err
	}
	f.updated = append(f.updated, a)
	return nil
}
func (f *fakeApptRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}
func (f *fakeApptRepo) GetForDoctorDate(ctx context.Context, id uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	return nil, nil
}
func (f *fakeApptRepo) GetInDateRange(ctx context.Context, id uuid.UUID, start, end time.Time) ([]*model.Appointment, error) {
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	var out []*model.Appointment
	for _, a := range f.appointments {
		day := a.Date.Format(model.DateOnly)
		if day >= start.Format(model.DateOnly) && day <= end.Format(model.DateOnly) {
			out = append(out, a)
		}
	}
	return out, nil
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

type recordingNotifier struct {
	recipients []uuid.UUID
}

func (r *recordingNotifier) Notify(ctx context.Context, userID uuid.UUID, subject, content string) error {
	r.recipients = append(r.recipients, userID)
	return nil
}

type noopInvalidator struct{ calls int }

func (n *noopInvalidator) InvalidateDoctor(uuid.UUID) { n.calls++ }

type fixture struct {
	svc      *Service
	repo     *memoryLeaveRepo
	appts    *fakeApptRepo
	notifier *recordingNotifier
	cache    *noopInvalidator
	doctor   *model.Doctor
}

func newFixture() *fixture {
	doctor := &model.Doctor{Base: model.Base{ID: uuid.New()}, UserID: uuid.New(), Name: "Dr. Asha Rao"}
	repo := &memoryLeaveRepo{leaves: map[uuid.UUID]*model.Leave{}, doctor: doctor}
	appts := &fakeApptRepo{failUpdate: map[uuid.UUID]error{}}
	notifier := &recordingNotifier{}
	cache := &noopInvalidator{}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := NewService(repo, appts, &fakeDoctorRepo{doctor: doctor}, cache, notifier, testMetrics, log).
		WithClock(func() time.Time { return monday })
	return &fixture{svc: svc, repo: repo, appts: appts, notifier: notifier, cache: cache, doctor: doctor}
}

func appointmentOn(doctorID uuid.UUID, date time.Time, slot string, status model.AppointmentStatus) *model.Appointment {
	return &model.Appointment{
		Base:      model.Base{ID: uuid.New()},
		DoctorID:  doctorID,
		PatientID: uuid.New(),
		Date:      date,
		TimeSlot:  slot,
		Status:    status,
	}
}

func TestPreviewReportsWithoutMutating(t *testing.T) {
	f := newFixture()
	inside := appointmentOn(f.doctor.ID, monday.AddDate(0, 0, 1), "10:00 - 11:00", model.AppointmentStatusApproved)
	outside := appointmentOn(f.doctor.ID, monday.AddDate(0, 0, 10), "10:00 - 11:00", model.AppointmentStatusApproved)
	cancelled := appointmentOn(f.doctor.ID, monday.AddDate(0, 0, 1), "11:00 - 12:00", model.AppointmentStatusCancelled)
	f.appts.appointments = []*model.Appointment{inside, outside, cancelled}

	result, err := f.svc.Preview(context.Background(), f.doctor.ID,
		monday.Format(model.DateOnly), monday.AddDate(0, 0, 3).Format(model.DateOnly))
	require.NoError(t, err)

	assert.Equal(t, 1, result.AffectedCount)
	assert.Equal(t, inside.ID, result.AffectedAppointments[0].AppointmentID)
	// Dry-run: nothing changed, nobody notified.
	assert.Empty(t, f.appts.updated)
	assert.Empty(t, f.notifier.recipients)
	assert.Equal(t, model.AppointmentStatusApproved, inside.Status)
}

func TestCreateCascadesConflicts(t *testing.T) {
	f := newFixture()
	first := appointmentOn(f.doctor.ID, monday.AddDate(0, 0, 1), "10:00 - 11:00", model.AppointmentStatusApproved)
	second := appointmentOn(f.doctor.ID, monday.AddDate(0, 0, 2), "11:00 - 12:00", model.AppointmentStatusPending)
	f.appts.appointments = []*model.Appointment{first, second}

	leave, result, err := f.svc.Create(context.Background(), f.doctor.ID, &model.CreateLeaveRequest{
		StartDate: monday.Format(model.DateOnly),
		EndDate:   monday.AddDate(0, 0, 3).Format(model.DateOnly),
		Reason:    "conference",
	})
	require.NoError(t, err)

	assert.Equal(t, model.LeaveStatusApproved, leave.Status)
	assert.True(t, f.doctor.OnLeave)
	assert.Equal(t, 2, result.AffectedCount)
	assert.Empty(t, result.Failed)
	assert.GreaterOrEqual(t, f.cache.calls, 1)

	require.Len(t, f.appts.updated, 2)
	for _, appt := range f.appts.updated {
		assert.Equal(t, model.AppointmentStatusAffectedByLeave, appt.Status)
		require.NotNil(t, appt.CancellationReason)
		assert.Equal(t, "conference", *appt.CancellationReason)
	}
	assert.ElementsMatch(t, []uuid.UUID{first.PatientID, second.PatientID}, f.notifier.recipients)
}

func TestCreateCascadeContinuesPastFailures(t *testing.T) {
	f := newFixture()
	failing := appointmentOn(f.doctor.ID, monday.AddDate(0, 0, 1), "10:00 - 11:00", model.AppointmentStatusApproved)
	healthy := appointmentOn(f.doctor.ID, monday.AddDate(0, 0, 2), "11:00 - 12:00", model.AppointmentStatusApproved)
	f.appts.appointments = []*model.Appointment{failing, healthy}
	f.appts.failUpdate[failing.ID] = errors.New("deadlock detected")

	_, result, err := f.svc.Create(context.Background(), f.doctor.ID, &model.CreateLeaveRequest{
		StartDate: monday.Format(model.DateOnly),
		EndDate:   monday.AddDate(0, 0, 3).Format(model.DateOnly),
		Reason:    "conference",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.AffectedCount)
	assert.Equal(t, []uuid.UUID{failing.ID}, result.Failed)
	// The failed appointment's patient is not notified of a change that
	// did not happen.
	assert.Equal(t, []uuid.UUID{healthy.PatientID}, f.notifier.recipients)
}

func TestCreateRejectsOverlappingLeave(t *testing.T) {
	f := newFixture()
	f.doctor.OnLeave = true

	_, _, err := f.svc.Create(context.Background(), f.doctor.ID, &model.CreateLeaveRequest{
		StartDate: monday.Format(model.DateOnly),
		EndDate:   monday.Format(model.DateOnly),
		Reason:    "conference",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestCreateRejectsBadInterval(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.Create(context.Background(), f.doctor.ID, &model.CreateLeaveRequest{
		StartDate: monday.AddDate(0, 0, 3).Format(model.DateOnly),
		EndDate:   monday.Format(model.DateOnly),
		Reason:    "conference",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, _, err = f.svc.Create(context.Background(), f.doctor.ID, &model.CreateLeaveRequest{
		StartDate: monday.AddDate(0, 0, -10).Format(model.DateOnly),
		EndDate:   monday.AddDate(0, 0, -8).Format(model.DateOnly),
		Reason:    "conference",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestCreateFailsWhenScanFails(t *testing.T) {
	f := newFixture()
	f.appts.rangeErr = errors.New("connection reset")

	leave, result, err := f.svc.Create(context.Background(), f.doctor.ID, &model.CreateLeaveRequest{
		StartDate: monday.Format(model.DateOnly),
		EndDate:   monday.AddDate(0, 0, 1).Format(model.DateOnly),
		Reason:    "conference",
	})
	// The leave commits, but the unresolved cascade is surfaced.
	require.NotNil(t, leave)
	assert.Nil(t, result)
	assert.True(t, apperrors.Is(err, apperrors.ErrDataUnavailable))
}

func TestCancelClearsProjection(t *testing.T) {
	f := newFixture()
	leave, _, err := f.svc.Create(context.Background(), f.doctor.ID, &model.CreateLeaveRequest{
		StartDate: monday.Format(model.DateOnly),
		EndDate:   monday.AddDate(0, 0, 3).Format(model.DateOnly),
		Reason:    "conference",
	})
	require.NoError(t, err)
	require.True(t, f.doctor.OnLeave)

	cancelled, err := f.svc.Cancel(context.Background(), leave.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeaveStatusCancelled, cancelled.Status)
	assert.False(t, f.doctor.OnLeave)

	// A closed leave cannot be cancelled again.
	_, err = f.svc.Cancel(context.Background(), leave.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestSweepCompletesExpiredLeaves(t *testing.T) {
	f := newFixture()
	leave, _, err := f.svc.Create(context.Background(), f.doctor.ID, &model.CreateLeaveRequest{
		StartDate: monday.Format(model.DateOnly),
		EndDate:   monday.AddDate(0, 0, 2).Format(model.DateOnly),
		Reason:    "conference",
	})
	require.NoError(t, err)

	// Nothing expires while the leave is still running.
	swept, err := f.svc.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, swept)

	f.svc.WithClock(func() time.Time { return monday.AddDate(0, 0, 5) })
	swept, err = f.svc.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	stored, err := f.repo.Get(context.Background(), leave.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeaveStatusCompleted, stored.Status)
	assert.False(t, f.doctor.OnLeave)
}

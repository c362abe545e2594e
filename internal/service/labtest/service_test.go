package labtest

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/storage"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
	"github.com/medisuite/portal-api/pkg/metrics"
)

var testMetrics = metrics.New("labtest_test")

var bookingDay = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

type memoryLabRepo struct {
	tests    map[uuid.UUID]*model.LabTest
	bookings map[uuid.UUID]*model.LabBooking
}

func newMemoryLabRepo(tests ...*model.LabTest) *memoryLabRepo {
	repo := &memoryLabRepo{
		tests:    map[uuid.UUID]*model.LabTest{},
		bookings: map[uuid.UUID]*model.LabBooking{},
	}
	for _, test := range tests {
		repo.tests[test.ID] = test
	}
	return repo
}

func (m *memoryLabRepo) Get(ctx context.Context, id uuid.UUID) (*model.LabTest, error) {
	test, ok := m.tests[id]
	if !ok {
		return nil, apperrors.NewNotFound("lab test", nil)
	}
	return test, nil
}

func (m *memoryLabRepo) List(ctx context.Context) ([]*model.LabTest, error) {
	var out []*model.LabTest
	for _, test := range m.tests {
		out = append(out, test)
	}
	return out, nil
}

func (m *memoryLabRepo) CreateBookingIfSlotFree(ctx context.Context, b *model.LabBooking) (bool, error) {
	for _, existing := range m.bookings {
		if existing.TestID == b.TestID &&
			existing.Date.Equal(b.Date) &&
			existing.TimeSlot == b.TimeSlot &&
			existing.Status != model.LabBookingCancelled {
			return false, nil
		}
	}
	clone := *b
	m.bookings[b.ID] = &clone
	return true, nil
}

func (m *memoryLabRepo) GetBooking(ctx context.Context, id uuid.UUID) (*model.LabBooking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, apperrors.NewNotFound("lab booking", nil)
	}
	clone := *b
	return &clone, nil
}

func (m *memoryLabRepo) UpdateBooking(ctx context.Context, b *model.LabBooking) error {
	clone := *b
	m.bookings[b.ID] = &clone
	return nil
}

func (m *memoryLabRepo) ListBookingsForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.LabBooking, error) {
	var out []*model.LabBooking
	for _, b := range m.bookings {
		if b.PatientID == patientID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryLabRepo) GetBookingsForTestDate(ctx context.Context, testID uuid.UUID, date time.Time) ([]*model.LabBooking, error) {
	var out []*model.LabBooking
	for _, b := range m.bookings {
		if b.TestID == testID && b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

type memoryRecordRepo struct {
	records []*model.MedicalRecord
}

func (m *memoryRecordRepo) Create(ctx context.Context, r *model.MedicalRecord) error {
	m.records = append(m.records, r)
	return nil
}

func (m *memoryRecordRepo) ListForPatient(ctx context.Context, patientID uuid.UUID, kind model.RecordKind) ([]*model.MedicalRecord, error) {
	return m.records, nil
}

func (m *memoryRecordRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type fakeStore struct {
	puts int
}

func (f *fakeStore) Put(ctx context.Context, name string, r io.Reader) (*storage.StoredFile, error) {
	f.puts++
	return &storage.StoredFile{ID: "blob-1", URL: "https://files.example.com/blob-1"}, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error { return nil }

type noopNotifier struct{ sent int }

func (n *noopNotifier) Notify(ctx context.Context, userID uuid.UUID, subject, content string) error {
	n.sent++
	return nil
}

func bloodPanel() *model.LabTest {
	return &model.LabTest{
		Base:            model.Base{ID: uuid.New()},
		Name:            "Complete Blood Count",
		Price:           40,
		FastingRequired: true,
		ReportHours:     24,
		StartTime:       "08:00",
		EndTime:         "14:00",
	}
}

func newService(repo *memoryLabRepo, records *memoryRecordRepo, store *fakeStore, notifier *noopNotifier) *Service {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewService(repo, records, store, notifier, testMetrics, log).
		WithClock(func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) })
}

func TestBookComputesTotalPrice(t *testing.T) {
	test := bloodPanel()
	repo := newMemoryLabRepo(test)
	svc := newService(repo, &memoryRecordRepo{}, &fakeStore{}, &noopNotifier{})

	booking, err := svc.Book(context.Background(), uuid.New(), &model.CreateLabBookingRequest{
		TestID:       test.ID,
		Date:         bookingDay.Format(model.DateOnly),
		TimeSlot:     "09:00 - 10:00",
		PatientCount: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, model.LabBookingPending, booking.Status)
	assert.Equal(t, 120.0, booking.TotalPrice)
	assert.Equal(t, "pending", booking.PaymentStatus)
}

func TestBookRejectsTakenAndPastSlots(t *testing.T) {
	test := bloodPanel()
	repo := newMemoryLabRepo(test)
	svc := newService(repo, &memoryRecordRepo{}, &fakeStore{}, &noopNotifier{})
	ctx := context.Background()
	patient := uuid.New()

	_, err := svc.Book(ctx, patient, &model.CreateLabBookingRequest{
		TestID: test.ID, Date: bookingDay.Format(model.DateOnly), TimeSlot: "09:00 - 10:00", PatientCount: 1,
	})
	require.NoError(t, err)

	_, err = svc.Book(ctx, uuid.New(), &model.CreateLabBookingRequest{
		TestID: test.ID, Date: bookingDay.Format(model.DateOnly), TimeSlot: "09:00 - 10:00", PatientCount: 1,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotTaken))

	// Clock is 2026-03-02 12:00; a same-day 09:00 slot is past.
	_, err = svc.Book(ctx, patient, &model.CreateLabBookingRequest{
		TestID: test.ID, Date: "2026-03-02", TimeSlot: "09:00 - 10:00", PatientCount: 1,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotInPast))

	_, err = svc.Book(ctx, patient, &model.CreateLabBookingRequest{
		TestID: test.ID, Date: bookingDay.Format(model.DateOnly), TimeSlot: "22:00 - 23:00", PatientCount: 1,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestDayAvailabilityUsesOperatingHours(t *testing.T) {
	test := bloodPanel()
	repo := newMemoryLabRepo(test)
	svc := newService(repo, &memoryRecordRepo{}, &fakeStore{}, &noopNotifier{})

	day, err := svc.DayAvailability(context.Background(), test.ID, bookingDay)
	require.NoError(t, err)
	// 08:00-14:00 yields six hourly slots, all days of the week.
	assert.Len(t, day.Slots, 6)
	for _, slot := range day.Slots {
		assert.Equal(t, model.SlotAvailable, slot.Status)
	}
}

func TestCompleteAttachesReportAndFilesRecord(t *testing.T) {
	test := bloodPanel()
	repo := newMemoryLabRepo(test)
	records := &memoryRecordRepo{}
	store := &fakeStore{}
	notifier := &noopNotifier{}
	svc := newService(repo, records, store, notifier)
	ctx := context.Background()

	booking, err := svc.Book(ctx, uuid.New(), &model.CreateLabBookingRequest{
		TestID: test.ID, Date: bookingDay.Format(model.DateOnly), TimeSlot: "09:00 - 10:00", PatientCount: 1,
	})
	require.NoError(t, err)

	completed, err := svc.Complete(ctx, booking.ID, "cbc-report.pdf", bytes.NewReader([]byte("report")))
	require.NoError(t, err)

	assert.Equal(t, model.LabBookingCompleted, completed.Status)
	require.NotNil(t, completed.ReportURL)
	assert.Equal(t, "https://files.example.com/blob-1", *completed.ReportURL)
	assert.Equal(t, 1, store.puts)

	require.Len(t, records.records, 1)
	assert.Equal(t, model.RecordKindLabReport, records.records[0].Kind)
	assert.Equal(t, booking.PatientID, records.records[0].PatientID)

	// Completing twice fails.
	_, err = svc.Complete(ctx, booking.ID, "cbc-report.pdf", bytes.NewReader(nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestCancelBooking(t *testing.T) {
	test := bloodPanel()
	repo := newMemoryLabRepo(test)
	svc := newService(repo, &memoryRecordRepo{}, &fakeStore{}, &noopNotifier{})
	ctx := context.Background()

	booking, err := svc.Book(ctx, uuid.New(), &model.CreateLabBookingRequest{
		TestID: test.ID, Date: bookingDay.Format(model.DateOnly), TimeSlot: "09:00 - 10:00", PatientCount: 1,
	})
	require.NoError(t, err)

	cancelled, err := svc.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LabBookingCancelled, cancelled.Status)

	// Idempotent.
	again, err := svc.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LabBookingCancelled, again.Status)

	// The slot opens back up.
	_, err = svc.Book(ctx, uuid.New(), &model.CreateLabBookingRequest{
		TestID: test.ID, Date: bookingDay.Format(model.DateOnly), TimeSlot: "09:00 - 10:00", PatientCount: 1,
	})
	assert.NoError(t, err)
}

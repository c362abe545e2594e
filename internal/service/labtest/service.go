package labtest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	"github.com/medisuite/portal-api/internal/service/schedule"
	"github.com/medisuite/portal-api/internal/storage"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
	"github.com/medisuite/portal-api/pkg/metrics"
)

// Notifier queues a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, subject, content string) error
}

// Service books lab tests against the catalog's operating hours. Labs have no
// leave concept, so classification is only booked/past/available.
type Service struct {
	repo       repository.LabTestRepository
	recordRepo repository.MedicalRecordRepository
	store      storage.Store
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(
	repo repository.LabTestRepository,
	recordRepo repository.MedicalRecordRepository,
	store storage.Store,
	notifier Notifier,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		recordRepo: recordRepo,
		store:      store,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ListTests(ctx context.Context) ([]*model.LabTest, error) {
	tests, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}
	return tests, nil
}

// DayAvailability returns the classified slot catalog for one test and date.
// Labs operate every day of the week within their configured hours.
func (s *Service) DayAvailability(ctx context.Context, testID uuid.UUID, date time.Time) (*model.DayAvailability, error) {
	test, err := s.repo.Get(ctx, testID)
	if err != nil {
		return nil, err
	}

	day := &model.DayAvailability{
		Date:  date.Format(model.DateOnly),
		Slots: schedule.Catalog(nil, test.StartTime, test.EndTime, date),
	}

	booked, err := s.bookedKeys(ctx, testID, date)
	if err != nil {
		return nil, err
	}
	for i := range day.Slots {
		day.Slots[i].Status = s.classify(day.Slots[i], booked, date)
	}
	return day, nil
}

// Book checks the requested slot, computes the total price from the catalog
// entry and the patient count, and inserts conditionally so two concurrent
// requests cannot share a slot.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, req *model.CreateLabBookingRequest) (*model.LabBooking, error) {
	start := time.Now()
	defer func() { s.metrics.BookingLatency.Observe(time.Since(start).Seconds()) }()

	date, err := time.Parse(model.DateOnly, req.Date)
	if err != nil {
		return nil, apperrors.NewValidation("date must be formatted YYYY-MM-DD", err)
	}

	test, err := s.repo.Get(ctx, req.TestID)
	if err != nil {
		return nil, err
	}

	slot, err := s.checkSlot(ctx, test, date, req.TimeSlot)
	if err != nil {
		s.metrics.BookingsRejected.WithLabelValues("lab", rejectionReason(err)).Inc()
		return nil, err
	}

	booking := &model.LabBooking{
		Base:          model.Base{ID: uuid.New()},
		TestID:        test.ID,
		PatientID:     patientID,
		Date:          date,
		TimeSlot:      slot.Key(),
		PatientCount:  req.PatientCount,
		TotalPrice:    test.Price * float64(req.PatientCount),
		Status:        model.LabBookingPending,
		PaymentStatus: "pending",
	}

	created, err := s.repo.CreateBookingIfSlotFree(ctx, booking)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if !created {
		s.metrics.BookingsRejected.WithLabelValues("lab", "slot_taken").Inc()
		return nil, apperrors.NewSlotTaken(slot.Key())
	}

	s.metrics.BookingsCreated.WithLabelValues("lab").Inc()
	content := fmt.Sprintf("Your %s booking on %s at %s is confirmed.", test.Name, req.Date, booking.TimeSlot)
	if test.FastingRequired {
		content += " Fasting is required before this test."
	}
	if err := s.notifier.Notify(ctx, patientID, "Lab test booked", content); err != nil {
		s.logger.Error(err, "failed to queue lab booking notification", "booking_id", booking.ID)
	}
	return booking, nil
}

// Complete closes a pending booking and attaches the generated report: the
// blob goes to the storage collaborator and a lab_report medical record is
// filed for the patient.
func (s *Service) Complete(ctx context.Context, bookingID uuid.UUID, reportName string, report io.Reader) (*model.LabBooking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.LabBookingPending {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("booking is already %s", booking.Status), nil)
	}

	stored, err := s.store.Put(ctx, reportName, report)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	booking.Status = model.LabBookingCompleted
	booking.ReportURL = &stored.URL
	booking.ReportFileID = &stored.ID
	if err := s.repo.UpdateBooking(ctx, booking); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	record := &model.MedicalRecord{
		Base:       model.Base{ID: uuid.New()},
		PatientID:  booking.PatientID,
		Kind:       model.RecordKindLabReport,
		FileName:   reportName,
		FileURL:    stored.URL,
		FileID:     stored.ID,
		UploadedBy: booking.PatientID,
	}
	if err := s.recordRepo.Create(ctx, record); err != nil {
		s.logger.Error(err, "failed to file lab report record", "booking_id", booking.ID)
	}

	if err := s.notifier.Notify(ctx, booking.PatientID, "Lab report ready",
		fmt.Sprintf("Your report for the booking on %s is ready.", booking.Date.Format(model.DateOnly))); err != nil {
		s.logger.Error(err, "failed to queue report notification", "booking_id", booking.ID)
	}
	return booking, nil
}

// CancelBooking releases the slot. Cancelling twice is a no-op.
func (s *Service) CancelBooking(ctx context.Context, bookingID uuid.UUID) (*model.LabBooking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch booking.Status {
	case model.LabBookingCancelled:
		return booking, nil
	case model.LabBookingCompleted:
		return nil, apperrors.NewBadRequest("completed bookings cannot be cancelled", nil)
	}

	booking.Status = model.LabBookingCancelled
	if err := s.repo.UpdateBooking(ctx, booking); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return booking, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.LabBooking, error) {
	bookings, err := s.repo.ListBookingsForPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}
	return bookings, nil
}

func (s *Service) checkSlot(ctx context.Context, test *model.LabTest, date time.Time, requested string) (*model.Slot, error) {
	slot := findSlot(schedule.Catalog(nil, test.StartTime, test.EndTime, date), requested)
	if slot == nil {
		return nil, apperrors.NewValidation("requested slot is outside the lab's operating hours", nil)
	}

	booked, err := s.bookedKeys(ctx, test.ID, date)
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

func (s *Service) bookedKeys(ctx context.Context, testID uuid.UUID, date time.Time) (map[string]bool, error) {
	bookings, err := s.repo.GetBookingsForTestDate(ctx, testID, date)
	if err != nil {
		s.logger.Error(err, "failed to load lab bookings for availability check")
		return nil, apperrors.NewDataUnavailable(err)
	}
	booked := make(map[string]bool, len(bookings))
	for _, b := range bookings {
		if b.Status != model.LabBookingCancelled {
			booked[b.TimeSlot] = true
		}
	}
	return booked, nil
}

func (s *Service) classify(slot model.Slot, booked map[string]bool, date time.Time) model.SlotStatus {
	if booked[slot.Key()] {
		return model.SlotBooked
	}
	now := s.now()
	today := now.Format(model.DateOnly)
	day := date.Format(model.DateOnly)
	if day < today {
		return model.SlotPast
	}
	if day == today {
		var h, m int
		if _, err := fmt.Sscanf(slot.StartTime, "%d:%d", &h, &m); err == nil {
			if now.Hour()*60+now.Minute() >= h*60+m {
				return model.SlotPast
			}
		}
	}
	return model.SlotAvailable
}

func findSlot(slots []model.Slot, requested string) *model.Slot {
	requested = strings.TrimSpace(requested)
	for i := range slots {
		if slots[i].Key() == requested || slots[i].StartTime == requested {
			found := slots[i]
			return &found
		}
	}
	return nil
}

func rejectionReason(err error) string {
	switch apperrors.Code(err) {
	case apperrors.ErrSlotTaken:
		return "slot_taken"
	case apperrors.ErrSlotInPast:
		return "slot_in_past"
	case apperrors.ErrValidation:
		return "invalid_slot"
	case apperrors.ErrDataUnavailable:
		return "data_unavailable"
	default:
		return "error"
	}
}

package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
	"github.com/medisuite/portal-api/pkg/metrics"
)

// ScheduleChecker classifies one requested slot and reports a typed error for
// anything that blocks it.
type ScheduleChecker interface {
	CheckSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, slot string) (*model.Slot, error)
	InvalidateDoctor(doctorID uuid.UUID)
}

// Notifier queues a notification for a user. Delivery is best-effort and
// failures never roll back the state change that triggered them.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, subject, content string) error
}

type Service struct {
	repo             repository.AppointmentRepository
	doctorRepo       repository.DoctorRepository
	prescriptionRepo repository.PrescriptionRepository
	schedule         ScheduleChecker
	notifier         Notifier
	metrics          *metrics.Metrics
	logger           *logger.Logger
}

func NewService(
	repo repository.AppointmentRepository,
	doctorRepo repository.DoctorRepository,
	prescriptionRepo repository.PrescriptionRepository,
	schedule ScheduleChecker,
	notifier Notifier,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:             repo,
		doctorRepo:       doctorRepo,
		prescriptionRepo: prescriptionRepo,
		schedule:         schedule,
		notifier:         notifier,
		metrics:          metrics,
		logger:           logger,
	}
}

// Book runs the check-then-write booking path. The availability check gives a
// precise rejection reason; the conditional insert closes the race between the
// check and the write, so two concurrent requests for the same slot can never
// both succeed.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	start := time.Now()
	defer func() { s.metrics.BookingLatency.Observe(time.Since(start).Seconds()) }()

	date, err := time.Parse(model.DateOnly, req.Date)
	if err != nil {
		return nil, apperrors.NewValidation("date must be formatted YYYY-MM-DD", err)
	}

	slot, err := s.schedule.CheckSlot(ctx, req.DoctorID, date, req.TimeSlot)
	if err != nil {
		s.metrics.BookingsRejected.WithLabelValues("appointment", rejectionReason(err)).Inc()
		return nil, err
	}

	appointment := &model.Appointment{
		Base:      model.Base{ID: uuid.New()},
		DoctorID:  req.DoctorID,
		PatientID: patientID,
		Date:      date,
		TimeSlot:  slot.Key(),
		Problem:   req.Problem,
		Status:    model.AppointmentStatusPending,
	}

	created, err := s.repo.CreateIfSlotFree(ctx, appointment)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if !created {
		// Another booking won the slot between the check and the write.
		s.metrics.BookingsRejected.WithLabelValues("appointment", "slot_taken").Inc()
		return nil, apperrors.NewSlotTaken(slot.Key())
	}

	s.metrics.BookingsCreated.WithLabelValues("appointment").Inc()
	s.notifyDoctor(ctx, appointment, "New appointment request",
		fmt.Sprintf("A patient requested %s on %s.", appointment.TimeSlot, req.Date))
	return appointment, nil
}

// Approve moves a pending appointment to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status != model.AppointmentStatusPending {
		return nil, apperrors.NewInvalidTransition(string(appointment.Status), "approve")
	}

	appointment.Status = model.AppointmentStatusApproved
	if err := s.repo.Update(ctx, appointment); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	s.notifyPatient(ctx, appointment, "Appointment confirmed",
		fmt.Sprintf("Your appointment on %s at %s has been confirmed.",
			appointment.Date.Format(model.DateOnly), appointment.TimeSlot))
	return appointment, nil
}

// Cancel moves an appointment to cancelled and records the reason. A doctor
// may attach a suggested replacement slot, which opens the reschedule flow.
// Cancelling an already-cancelled appointment is a no-op: no state change and
// no second notification.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, req *model.CancelAppointmentRequest) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch appointment.Status {
	case model.AppointmentStatusCancelled:
		return appointment, nil
	case model.AppointmentStatusSeen:
		return nil, apperrors.NewInvalidTransition(string(appointment.Status), "cancel")
	}

	appointment.Status = model.AppointmentStatusCancelled
	appointment.CancellationReason = &req.Reason

	message := fmt.Sprintf("Your appointment on %s at %s was cancelled: %s.",
		appointment.Date.Format(model.DateOnly), appointment.TimeSlot, req.Reason)

	if req.SuggestedDate != "" && req.SuggestedTimeSlot != "" {
		suggested, err := time.Parse(model.DateOnly, req.SuggestedDate)
		if err != nil {
			return nil, apperrors.NewValidation("suggested_date must be formatted YYYY-MM-DD", err)
		}
		pending := model.ReschedulePending
		appointment.RescheduleStatus = &pending
		appointment.SuggestedDate = &suggested
		appointment.SuggestedTimeSlot = &req.SuggestedTimeSlot
		message += fmt.Sprintf(" A new slot was suggested: %s at %s.", req.SuggestedDate, req.SuggestedTimeSlot)
	}

	if err := s.repo.Update(ctx, appointment); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	s.notifyPatient(ctx, appointment, "Appointment cancelled", message)
	return appointment, nil
}

// AcceptReschedule takes the suggested slot attached to a cancelled
// appointment and rebooks it: the suggested date and slot become the
// appointment's date and slot, and the appointment goes straight to approved,
// since the doctor proposed the slot. The target slot is availability-checked
// like any fresh booking.
func (s *Service) AcceptReschedule(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rescheduleOpen(appointment, "accept a reschedule for"); err != nil {
		return nil, err
	}

	slot, err := s.schedule.CheckSlot(ctx, appointment.DoctorID, *appointment.SuggestedDate, *appointment.SuggestedTimeSlot)
	if err != nil {
		s.metrics.BookingsRejected.WithLabelValues("reschedule", rejectionReason(err)).Inc()
		return nil, err
	}

	accepted := model.RescheduleAccepted
	appointment.Date = *appointment.SuggestedDate
	appointment.TimeSlot = slot.Key()
	appointment.Status = model.AppointmentStatusApproved
	appointment.RescheduleStatus = &accepted
	appointment.SuggestedDate = nil
	appointment.SuggestedTimeSlot = nil
	appointment.CancellationReason = nil

	if err := s.repo.Update(ctx, appointment); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	s.metrics.BookingsCreated.WithLabelValues("reschedule").Inc()
	s.notifyDoctor(ctx, appointment, "Reschedule accepted",
		fmt.Sprintf("The patient accepted the suggested slot %s on %s.",
			appointment.TimeSlot, appointment.Date.Format(model.DateOnly)))
	s.notifyPatient(ctx, appointment, "Appointment rescheduled",
		fmt.Sprintf("Your appointment has been moved to %s on %s and is approved.",
			appointment.TimeSlot, appointment.Date.Format(model.DateOnly)))
	return appointment, nil
}

// RejectReschedule declines the suggested slot. The appointment stays
// cancelled and the suggestion is closed.
func (s *Service) RejectReschedule(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rescheduleOpen(appointment, "reject a reschedule for"); err != nil {
		return nil, err
	}

	rejected := model.RescheduleRejected
	appointment.RescheduleStatus = &rejected

	if err := s.repo.Update(ctx, appointment); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	s.notifyDoctor(ctx, appointment, "Reschedule declined",
		"The patient declined the suggested replacement slot.")
	s.notifyPatient(ctx, appointment, "Reschedule declined",
		"You declined the suggested replacement slot. The appointment remains cancelled.")
	return appointment, nil
}

// MarkSeen closes out an approved appointment. A prescription must exist
// first, so the consultation record is complete before the appointment
// reaches its terminal state.
func (s *Service) MarkSeen(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status != model.AppointmentStatusApproved {
		return nil, apperrors.NewInvalidTransition(string(appointment.Status), "mark seen")
	}

	if _, err := s.prescriptionRepo.GetByAppointment(ctx, id); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewBadRequest("a prescription must be issued before the appointment is marked seen", nil)
		}
		return nil, err
	}

	appointment.Status = model.AppointmentStatusSeen
	if err := s.repo.Update(ctx, appointment); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return appointment, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}
	return appointments, nil
}

func rescheduleOpen(a *model.Appointment, event string) error {
	if a.Status != model.AppointmentStatusCancelled ||
		a.RescheduleStatus == nil || *a.RescheduleStatus != model.ReschedulePending ||
		a.SuggestedDate == nil || a.SuggestedTimeSlot == nil {
		return apperrors.NewInvalidTransition(string(a.Status), event)
	}
	return nil
}

func rejectionReason(err error) string {
	switch apperrors.Code(err) {
	case apperrors.ErrDoctorUnavailable:
		return "doctor_on_leave"
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

func (s *Service) notifyPatient(ctx context.Context, a *model.Appointment, subject, content string) {
	if err := s.notifier.Notify(ctx, a.PatientID, subject, content); err != nil {
		s.logger.Error(err, "failed to queue patient notification", "appointment_id", a.ID)
	}
}

func (s *Service) notifyDoctor(ctx context.Context, a *model.Appointment, subject, content string) {
	doctor, err := s.doctorRepo.Get(ctx, a.DoctorID)
	if err != nil {
		s.logger.Error(err, "failed to resolve doctor for notification", "appointment_id", a.ID)
		return
	}
	if err := s.notifier.Notify(ctx, doctor.UserID, subject, content); err != nil {
		s.logger.Error(err, "failed to queue doctor notification", "appointment_id", a.ID)
	}
}

package leave

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

// Notifier queues a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, subject, content string) error
}

// CacheInvalidator drops a cached doctor record after its leave projection
// changes.
type CacheInvalidator interface {
	InvalidateDoctor(doctorID uuid.UUID)
}

// Service manages doctor leave and resolves the appointments each leave
// collides with. A leave is approved the moment it is created; its only
// later transitions are cancelled (by the doctor) or completed (by the
// expiry sweep).
type Service struct {
	repo       repository.LeaveRepository
	apptRepo   repository.AppointmentRepository
	doctorRepo repository.DoctorRepository
	cache      CacheInvalidator
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(
	repo repository.LeaveRepository,
	apptRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorRepository,
	cache CacheInvalidator,
	notifier Notifier,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		apptRepo:   apptRepo,
		doctorRepo: doctorRepo,
		cache:      cache,
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

// Preview reports which appointments a leave over [start, end] would affect,
// without changing anything. Doctors call this before committing a leave.
func (s *Service) Preview(ctx context.Context, doctorID uuid.UUID, startDate, endDate string) (*model.LeaveCascadeResult, error) {
	start, end, err := s.parseInterval(startDate, endDate)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.conflicting(ctx, doctorID, start, end)
	if err != nil {
		return nil, err
	}

	result := &model.LeaveCascadeResult{AffectedCount: len(conflicts)}
	for _, appt := range conflicts {
		result.AffectedAppointments = append(result.AffectedAppointments, snapshot(appt))
	}
	return result, nil
}

// Create records an approved leave, projects it onto the doctor row, and
// cascades over every pending or approved appointment inside the interval.
// Affected appointments are parked in an intermediate state rather than
// cancelled outright, so patients keep their reschedule options. The cascade
// is best-effort: an appointment that fails to update is reported in the
// result and never aborts the rest.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreateLeaveRequest) (*model.Leave, *model.LeaveCascadeResult, error) {
	start, end, err := s.parseInterval(req.StartDate, req.EndDate)
	if err != nil {
		return nil, nil, err
	}

	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return nil, nil, err
	}
	if doctor.OnLeave {
		return nil, nil, apperrors.NewBadRequest("doctor already has an active leave", nil)
	}

	leave := &model.Leave{
		Base:      model.Base{ID: uuid.New()},
		DoctorID:  doctorID,
		StartDate: start,
		EndDate:   end,
		Reason:    req.Reason,
		Status:    model.LeaveStatusApproved,
	}
	if err := s.repo.CreateAndProject(ctx, leave); err != nil {
		return nil, nil, apperrors.NewInternal(err)
	}
	s.cache.InvalidateDoctor(doctorID)

	result, err := s.cascade(ctx, leave)
	if err != nil {
		// The leave itself is committed; surface the scan failure so the
		// doctor knows conflicts were not resolved.
		return leave, nil, err
	}
	return leave, result, nil
}

// Cancel withdraws an active leave and clears the doctor's projection.
// Appointments already parked by the cascade stay parked; reinstating them is
// a doctor decision, not an automatic one.
func (s *Service) Cancel(ctx context.Context, leaveID uuid.UUID) (*model.Leave, error) {
	leave, err := s.repo.Get(ctx, leaveID)
	if err != nil {
		return nil, err
	}
	if leave.Status != model.LeaveStatusApproved {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("leave is already %s", leave.Status), nil)
	}

	if err := s.repo.CloseAndClearProjection(ctx, leave, model.LeaveStatusCancelled); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	leave.Status = model.LeaveStatusCancelled
	s.cache.InvalidateDoctor(leave.DoctorID)
	return leave, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Leave, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Leave, error) {
	leaves, err := s.repo.ListForDoctor(ctx, doctorID)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}
	return leaves, nil
}

// Sweep completes every approved leave whose end date has passed, clearing
// the doctor projections so the slot catalog opens up again. Run periodically
// by the background worker.
func (s *Service) Sweep(ctx context.Context, limit int) (int, error) {
	expired, err := s.repo.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, apperrors.NewDataUnavailable(err)
	}

	swept := 0
	for _, leave := range expired {
		if err := s.repo.CloseAndClearProjection(ctx, leave, model.LeaveStatusCompleted); err != nil {
			s.logger.Error(err, "failed to complete expired leave", "leave_id", leave.ID)
			continue
		}
		s.cache.InvalidateDoctor(leave.DoctorID)
		s.metrics.LeavesSwept.Inc()
		swept++
	}
	return swept, nil
}

// cascade parks every conflicting appointment and notifies its patient.
func (s *Service) cascade(ctx context.Context, leave *model.Leave) (*model.LeaveCascadeResult, error) {
	conflicts, err := s.conflicting(ctx, leave.DoctorID, leave.StartDate, leave.EndDate)
	if err != nil {
		return nil, err
	}

	result := &model.LeaveCascadeResult{}
	for _, appt := range conflicts {
		appt.Status = model.AppointmentStatusAffectedByLeave
		reason := leave.Reason
		appt.CancellationReason = &reason
		if err := s.apptRepo.Update(ctx, appt); err != nil {
			s.logger.Error(err, "leave cascade could not update appointment",
				"appointment_id", appt.ID, "leave_id", leave.ID)
			s.metrics.LeaveCascadeFailed.Inc()
			result.Failed = append(result.Failed, appt.ID)
			continue
		}

		s.metrics.LeaveCascadeAffected.Inc()
		result.AffectedCount++
		result.AffectedAppointments = append(result.AffectedAppointments, snapshot(appt))

		content := fmt.Sprintf("Your appointment on %s at %s is affected by doctor leave: %s. Please rebook or wait for a new slot suggestion.",
			appt.Date.Format(model.DateOnly), appt.TimeSlot, leave.Reason)
		if err := s.notifier.Notify(ctx, appt.PatientID, "Appointment affected by doctor leave", content); err != nil {
			s.logger.Error(err, "failed to queue leave notification", "appointment_id", appt.ID)
		}
	}
	return result, nil
}

// conflicting returns the pending and approved appointments inside the
// interval. Failing to read them is a hard error: the cascade must never run
// on a partial view.
func (s *Service) conflicting(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.Appointment, error) {
	appointments, err := s.apptRepo.GetInDateRange(ctx, doctorID, start, end)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}

	var conflicts []*model.Appointment
	for _, appt := range appointments {
		if appt.Status == model.AppointmentStatusPending || appt.Status == model.AppointmentStatusApproved {
			conflicts = append(conflicts, appt)
		}
	}
	return conflicts, nil
}

func (s *Service) parseInterval(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(model.DateOnly, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidation("start_date must be formatted YYYY-MM-DD", err)
	}
	end, err := time.Parse(model.DateOnly, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidation("end_date must be formatted YYYY-MM-DD", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperrors.NewValidation("end_date must not be before start_date", nil)
	}
	if end.Format(model.DateOnly) < s.now().Format(model.DateOnly) {
		return time.Time{}, time.Time{}, apperrors.NewValidation("leave interval is entirely in the past", nil)
	}
	return start, end, nil
}

func snapshot(a *model.Appointment) model.AffectedAppointment {
	return model.AffectedAppointment{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		Date:          a.Date,
		TimeSlot:      a.TimeSlot,
	}
}

package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
)

type Service struct {
	repo     repository.PrescriptionRepository
	apptRepo repository.AppointmentRepository
}

func NewService(repo repository.PrescriptionRepository, apptRepo repository.AppointmentRepository) *Service {
	return &Service{repo: repo, apptRepo: apptRepo}
}

// Create writes a prescription for an approved appointment. One prescription
// per appointment; its existence is what later allows the appointment to be
// marked seen.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	appointment, err := s.apptRepo.Get(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.DoctorID != doctorID {
		return nil, apperrors.NewBadRequest("appointment belongs to another doctor", nil)
	}
	if appointment.Status != model.AppointmentStatusApproved {
		return nil, apperrors.NewBadRequest("prescriptions can only be written for approved appointments", nil)
	}
	if _, err := s.repo.GetByAppointment(ctx, req.AppointmentID); err == nil {
		return nil, apperrors.NewBadRequest("appointment already has a prescription", nil)
	}

	prescription := &model.Prescription{
		Base:          model.Base{ID: uuid.New()},
		AppointmentID: req.AppointmentID,
		DoctorID:      doctorID,
		PatientID:     appointment.PatientID,
		Items:         req.Items,
		Notes:         req.Notes,
	}
	if err := s.repo.Create(ctx, prescription); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return prescription, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	prescriptions, err := s.repo.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}
	return prescriptions, nil
}

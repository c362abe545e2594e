package doctor

import (
	"context"

	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
)

// CacheInvalidator drops a cached doctor record after a schedule change.
type CacheInvalidator interface {
	InvalidateDoctor(doctorID uuid.UUID)
}

type Service struct {
	repo   repository.DoctorRepository
	cache  CacheInvalidator
	logger *logger.Logger
}

func NewService(repo repository.DoctorRepository, cache CacheInvalidator, logger *logger.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Create registers a doctor profile against an existing user account.
func (s *Service) Create(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	if err := validHours(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	for _, day := range req.WorkingDays {
		if !validWeekday(day) {
			return nil, apperrors.NewValidation("working_days must contain weekday names", nil)
		}
	}

	doctor := &model.Doctor{
		Base:        model.Base{ID: uuid.New()},
		UserID:      req.UserID,
		Name:        req.Name,
		Specialty:   req.Specialty,
		Fee:         req.Fee,
		WorkingDays: req.WorkingDays,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return doctor, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *Service) List(ctx context.Context, specialty string) ([]*model.Doctor, error) {
	doctors, err := s.repo.List(ctx, specialty)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}
	return doctors, nil
}

// UpdateSchedule replaces the doctor's working days and hours and invalidates
// the availability cache so the new catalog is visible immediately.
func (s *Service) UpdateSchedule(ctx context.Context, id uuid.UUID, workingDays []string, startTime, endTime string) (*model.Doctor, error) {
	if err := validHours(startTime, endTime); err != nil {
		return nil, err
	}

	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doctor.WorkingDays = workingDays
	doctor.StartTime = startTime
	doctor.EndTime = endTime
	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	s.cache.InvalidateDoctor(id)
	return doctor, nil
}

func validHours(start, end string) error {
	if len(start) != 5 || len(end) != 5 || start[2] != ':' || end[2] != ':' {
		return apperrors.NewValidation("working hours must be formatted HH:MM", nil)
	}
	if end <= start {
		return apperrors.NewValidation("end_time must be after start_time", nil)
	}
	return nil
}

func validWeekday(day string) bool {
	switch day {
	case "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday":
		return true
	}
	return false
}

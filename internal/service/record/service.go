package record

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	"github.com/medisuite/portal-api/internal/storage"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
)

type Service struct {
	repo   repository.MedicalRecordRepository
	store  storage.Store
	logger *logger.Logger
}

func NewService(repo repository.MedicalRecordRepository, store storage.Store, logger *logger.Logger) *Service {
	return &Service{repo: repo, store: store, logger: logger}
}

// Upload stores the blob and files an upload record for the patient.
func (s *Service) Upload(ctx context.Context, patientID, uploadedBy uuid.UUID, fileName string, r io.Reader) (*model.MedicalRecord, error) {
	stored, err := s.store.Put(ctx, fileName, r)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	record := &model.MedicalRecord{
		Base:       model.Base{ID: uuid.New()},
		PatientID:  patientID,
		Kind:       model.RecordKindUpload,
		FileName:   fileName,
		FileURL:    stored.URL,
		FileID:     stored.ID,
		UploadedBy: uploadedBy,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		// Orphaned blobs are cheaper than lost records; clean up on the
		// failure path only.
		if derr := s.store.Delete(ctx, stored.ID); derr != nil {
			s.logger.Error(derr, "failed to delete orphaned blob", "file_id", stored.ID)
		}
		return nil, apperrors.NewInternal(err)
	}
	return record, nil
}

// ListForPatient returns records of one kind, or all kinds when kind is empty.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, kind model.RecordKind) ([]*model.MedicalRecord, error) {
	records, err := s.repo.ListForPatient(ctx, patientID, kind)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}
	return records, nil
}

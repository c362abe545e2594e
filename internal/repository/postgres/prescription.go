package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/medisuite/portal-api/pkg/errors"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
)

type prescriptionRepository struct {
	db *sqlx.DB
}

func NewPrescriptionRepository(db *sqlx.DB) repository.PrescriptionRepository {
	return &prescriptionRepository{db: db}
}

func (r *prescriptionRepository) Create(ctx context.Context, prescription *model.Prescription) error {
	items, err := json.Marshal(prescription.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal prescription items: %w", err)
	}
	prescription.ItemsJSON = items

	query := `
		INSERT INTO prescriptions (
			id, appointment_id, doctor_id, patient_id, items, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	prescription.ID = uuid.New()
	prescription.CreatedAt = time.Now()
	prescription.UpdatedAt = time.Now()

	_, err = r.db.ExecContext(ctx, query,
		prescription.ID,
		prescription.AppointmentID,
		prescription.DoctorID,
		prescription.PatientID,
		prescription.ItemsJSON,
		prescription.Notes,
		prescription.CreatedAt,
		prescription.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	query := `
		SELECT id, appointment_id, doctor_id, patient_id, items, notes,
			   created_at, updated_at
		FROM prescriptions
		WHERE id = $1
	`
	var prescription model.Prescription
	err := r.db.GetContext(ctx, &prescription, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("prescription", err)
		}
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	if err := unmarshalItems(&prescription); err != nil {
		return nil, err
	}
	return &prescription, nil
}

func (r *prescriptionRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error) {
	query := `
		SELECT id, appointment_id, doctor_id, patient_id, items, notes,
			   created_at, updated_at
		FROM prescriptions
		WHERE appointment_id = $1
	`
	var prescription model.Prescription
	err := r.db.GetContext(ctx, &prescription, query, appointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("prescription", err)
		}
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	if err := unmarshalItems(&prescription); err != nil {
		return nil, err
	}
	return &prescription, nil
}

func (r *prescriptionRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	query := `
		SELECT id, appointment_id, doctor_id, patient_id, items, notes,
			   created_at, updated_at
		FROM prescriptions
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`
	var prescriptions []*model.Prescription
	err := r.db.SelectContext(ctx, &prescriptions, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	for _, p := range prescriptions {
		if err := unmarshalItems(p); err != nil {
			return nil, err
		}
	}
	return prescriptions, nil
}

func unmarshalItems(p *model.Prescription) error {
	if len(p.ItemsJSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.ItemsJSON, &p.Items); err != nil {
		return fmt.Errorf("failed to unmarshal prescription items: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/medisuite/portal-api/pkg/errors"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

// CreateIfSlotFree relies on a partial unique index over
// (doctor_id, date, time_slot) WHERE status != 'cancelled'. The insert and the
// uniqueness check are a single statement, so two clients racing for the same
// slot cannot both succeed.
func (r *appointmentRepository) CreateIfSlotFree(ctx context.Context, appointment *model.Appointment) (bool, error) {
	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, date, time_slot,
			problem, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.DoctorID,
		appointment.PatientID,
		appointment.Date,
		appointment.TimeSlot,
		appointment.Problem,
		appointment.Status,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, doctor_id, patient_id, date, time_slot, problem, status,
			   reschedule_status, suggested_date, suggested_time_slot,
			   cancellation_reason, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET date = $1, time_slot = $2, status = $3, reschedule_status = $4,
			suggested_date = $5, suggested_time_slot = $6,
			cancellation_reason = $7, updated_at = $8
		WHERE id = $9
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.Date,
		appointment.TimeSlot,
		appointment.Status,
		appointment.RescheduleStatus,
		appointment.SuggestedDate,
		appointment.SuggestedTimeSlot,
		appointment.CancellationReason,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("appointment", nil)
	}

	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, doctor_id, patient_id, date, time_slot, problem, status,
			   reschedule_status, suggested_date, suggested_time_slot,
			   cancellation_reason, created_at, updated_at
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, filters.DoctorID)
		argCount++
	}

	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND date >= $%d", argCount)
		args = append(args, filters.StartDate)
		argCount++
	}

	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND date <= $%d", argCount)
		args = append(args, filters.EndDate)
		argCount++
	}

	query += " ORDER BY date ASC, time_slot ASC"

	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) GetForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT id, doctor_id, patient_id, date, time_slot, problem, status,
			   reschedule_status, suggested_date, suggested_time_slot,
			   cancellation_reason, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		AND date = $2
		ORDER BY time_slot ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointments for date: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) GetInDateRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT id, doctor_id, patient_id, date, time_slot, problem, status,
			   reschedule_status, suggested_date, suggested_time_slot,
			   cancellation_reason, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		AND date >= $2
		AND date <= $3
		AND status != 'cancelled'
		ORDER BY date ASC, time_slot ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, doctorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointments in range: %w", err)
	}
	return appointments, nil
}

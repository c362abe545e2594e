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

type labTestRepository struct {
	db *sqlx.DB
}

func NewLabTestRepository(db *sqlx.DB) repository.LabTestRepository {
	return &labTestRepository{db: db}
}

func (r *labTestRepository) Get(ctx context.Context, id uuid.UUID) (*model.LabTest, error) {
	query := `
		SELECT id, name, description, price, fasting_required, report_hours,
			   start_time, end_time, created_at, updated_at
		FROM lab_tests
		WHERE id = $1
	`
	var test model.LabTest
	err := r.db.GetContext(ctx, &test, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("lab test", err)
		}
		return nil, fmt.Errorf("failed to get lab test: %w", err)
	}
	return &test, nil
}

func (r *labTestRepository) List(ctx context.Context) ([]*model.LabTest, error) {
	query := `
		SELECT id, name, description, price, fasting_required, report_hours,
			   start_time, end_time, created_at, updated_at
		FROM lab_tests
		ORDER BY name ASC
	`
	var tests []*model.LabTest
	err := r.db.SelectContext(ctx, &tests, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list lab tests: %w", err)
	}
	return tests, nil
}

// CreateBookingIfSlotFree mirrors the appointment conditional insert: a
// partial unique index over (test_id, date, time_slot) for non-cancelled rows
// arbitrates concurrent bookings.
func (r *labTestRepository) CreateBookingIfSlotFree(ctx context.Context, booking *model.LabBooking) (bool, error) {
	query := `
		INSERT INTO lab_bookings (
			id, test_id, patient_id, date, time_slot, patient_count,
			total_price, status, payment_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING
	`
	booking.ID = uuid.New()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.TestID,
		booking.PatientID,
		booking.Date,
		booking.TimeSlot,
		booking.PatientCount,
		booking.TotalPrice,
		booking.Status,
		booking.PaymentStatus,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create lab booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *labTestRepository) GetBooking(ctx context.Context, id uuid.UUID) (*model.LabBooking, error) {
	query := `
		SELECT id, test_id, patient_id, date, time_slot, patient_count,
			   total_price, status, payment_status, report_url, report_file_id,
			   created_at, updated_at
		FROM lab_bookings
		WHERE id = $1
	`
	var booking model.LabBooking
	err := r.db.GetContext(ctx, &booking, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("lab booking", err)
		}
		return nil, fmt.Errorf("failed to get lab booking: %w", err)
	}
	return &booking, nil
}

func (r *labTestRepository) UpdateBooking(ctx context.Context, booking *model.LabBooking) error {
	query := `
		UPDATE lab_bookings
		SET status = $1, payment_status = $2, report_url = $3,
			report_file_id = $4, updated_at = $5
		WHERE id = $6
	`
	booking.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		booking.Status,
		booking.PaymentStatus,
		booking.ReportURL,
		booking.ReportFileID,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lab booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("lab booking", nil)
	}
	return nil
}

func (r *labTestRepository) ListBookingsForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.LabBooking, error) {
	query := `
		SELECT id, test_id, patient_id, date, time_slot, patient_count,
			   total_price, status, payment_status, report_url, report_file_id,
			   created_at, updated_at
		FROM lab_bookings
		WHERE patient_id = $1
		ORDER BY date DESC, time_slot DESC
	`
	var bookings []*model.LabBooking
	err := r.db.SelectContext(ctx, &bookings, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lab bookings: %w", err)
	}
	return bookings, nil
}

func (r *labTestRepository) GetBookingsForTestDate(ctx context.Context, testID uuid.UUID, date time.Time) ([]*model.LabBooking, error) {
	query := `
		SELECT id, test_id, patient_id, date, time_slot, patient_count,
			   total_price, status, payment_status, report_url, report_file_id,
			   created_at, updated_at
		FROM lab_bookings
		WHERE test_id = $1
		AND date = $2
		ORDER BY time_slot ASC
	`
	var bookings []*model.LabBooking
	err := r.db.SelectContext(ctx, &bookings, query, testID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get lab bookings for date: %w", err)
	}
	return bookings, nil
}

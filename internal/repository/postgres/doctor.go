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

type doctorRepository struct {
	db *sqlx.DB
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{db: db}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, user_id, name, specialty, fee, working_days,
			start_time, end_time, on_leave, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $10)
	`
	doctor.ID = uuid.New()
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.UserID,
		doctor.Name,
		doctor.Specialty,
		doctor.Fee,
		doctor.WorkingDays,
		doctor.StartTime,
		doctor.EndTime,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

const doctorColumns = `
	id, user_id, name, specialty, fee, working_days, start_time, end_time,
	on_leave, leave_start_date, leave_end_date, leave_reason, current_leave_id,
	created_at, updated_at
`

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`

	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE user_id = $1`

	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET name = $1, specialty = $2, fee = $3, working_days = $4,
			start_time = $5, end_time = $6, updated_at = $7
		WHERE id = $8
	`
	doctor.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		doctor.Name,
		doctor.Specialty,
		doctor.Fee,
		doctor.WorkingDays,
		doctor.StartTime,
		doctor.EndTime,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("doctor", nil)
	}
	return nil
}

func (r *doctorRepository) List(ctx context.Context, specialty string) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors`
	args := []interface{}{}

	if specialty != "" {
		query += " WHERE specialty = $1"
		args = append(args, specialty)
	}
	query += " ORDER BY name ASC"

	var doctors []*model.Doctor
	err := r.db.SelectContext(ctx, &doctors, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) SetLeaveProjection(ctx context.Context, doctorID uuid.UUID, leave *model.Leave) error {
	return setLeaveProjection(ctx, r.db, doctorID, leave)
}

// setLeaveProjection is shared with the leave repository so the projection can
// be written inside a leave transaction.
func setLeaveProjection(ctx context.Context, ext sqlx.ExtContext, doctorID uuid.UUID, leave *model.Leave) error {
	var (
		query string
		args  []interface{}
	)

	if leave != nil {
		query = `
			UPDATE doctors
			SET on_leave = true, leave_start_date = $1, leave_end_date = $2,
				leave_reason = $3, current_leave_id = $4, updated_at = $5
			WHERE id = $6
		`
		args = []interface{}{leave.StartDate, leave.EndDate, leave.Reason, leave.ID, time.Now(), doctorID}
	} else {
		query = `
			UPDATE doctors
			SET on_leave = false, leave_start_date = NULL, leave_end_date = NULL,
				leave_reason = NULL, current_leave_id = NULL, updated_at = $1
			WHERE id = $2
		`
		args = []interface{}{time.Now(), doctorID}
	}

	result, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set leave projection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("doctor", nil)
	}
	return nil
}

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

type leaveRepository struct {
	BaseRepository
}

func NewLeaveRepository(db *sqlx.DB) repository.LeaveRepository {
	return &leaveRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *leaveRepository) CreateAndProject(ctx context.Context, leave *model.Leave) error {
	leave.ID = uuid.New()
	leave.Status = model.LeaveStatusApproved
	leave.CreatedAt = time.Now()
	leave.UpdatedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO leaves (
				id, doctor_id, start_date, end_date, reason, status,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := tx.ExecContext(ctx, query,
			leave.ID,
			leave.DoctorID,
			leave.StartDate,
			leave.EndDate,
			leave.Reason,
			leave.Status,
			leave.CreatedAt,
			leave.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create leave: %w", err)
		}

		return setLeaveProjection(ctx, tx, leave.DoctorID, leave)
	})
}

func (r *leaveRepository) CloseAndClearProjection(ctx context.Context, leave *model.Leave, status model.LeaveStatus) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE leaves
			SET status = $1, updated_at = $2
			WHERE id = $3
		`
		result, err := tx.ExecContext(ctx, query, status, time.Now(), leave.ID)
		if err != nil {
			return fmt.Errorf("failed to update leave: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperrors.NewNotFound("leave", nil)
		}

		leave.Status = status

		// Only clear the projection if this leave is still the doctor's
		// current one.
		clear := `
			UPDATE doctors
			SET on_leave = false, leave_start_date = NULL, leave_end_date = NULL,
				leave_reason = NULL, current_leave_id = NULL, updated_at = $1
			WHERE id = $2 AND current_leave_id = $3
		`
		if _, err := tx.ExecContext(ctx, clear, time.Now(), leave.DoctorID, leave.ID); err != nil {
			return fmt.Errorf("failed to clear leave projection: %w", err)
		}
		return nil
	})
}

func (r *leaveRepository) Get(ctx context.Context, id uuid.UUID) (*model.Leave, error) {
	query := `
		SELECT id, doctor_id, start_date, end_date, reason, status,
			   created_at, updated_at
		FROM leaves
		WHERE id = $1
	`
	var leave model.Leave
	err := r.GetDB().GetContext(ctx, &leave, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("leave", err)
		}
		return nil, fmt.Errorf("failed to get leave: %w", err)
	}
	return &leave, nil
}

func (r *leaveRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Leave, error) {
	query := `
		SELECT id, doctor_id, start_date, end_date, reason, status,
			   created_at, updated_at
		FROM leaves
		WHERE doctor_id = $1
		ORDER BY start_date DESC
	`
	var leaves []*model.Leave
	err := r.GetDB().SelectContext(ctx, &leaves, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}
	return leaves, nil
}

func (r *leaveRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Leave, error) {
	query := `
		SELECT id, doctor_id, start_date, end_date, reason, status,
			   created_at, updated_at
		FROM leaves
		WHERE status = $1
		AND end_date < $2
		ORDER BY end_date ASC
		LIMIT $3
	`
	var leaves []*model.Leave
	err := r.GetDB().SelectContext(ctx, &leaves, query, model.LeaveStatusApproved, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired leaves: %w", err)
	}
	return leaves, nil
}

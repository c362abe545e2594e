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

type ticketRepository struct {
	db *sqlx.DB
}

func NewTicketRepository(db *sqlx.DB) repository.TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *model.Ticket) error {
	query := `
		INSERT INTO tickets (
			id, user_id, subject, message, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	ticket.ID = uuid.New()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		ticket.ID,
		ticket.UserID,
		ticket.Subject,
		ticket.Message,
		ticket.Status,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (r *ticketRepository) Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	query := `
		SELECT id, user_id, subject, message, status, response,
			   created_at, updated_at
		FROM tickets
		WHERE id = $1
	`
	var ticket model.Ticket
	err := r.db.GetContext(ctx, &ticket, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", err)
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *model.Ticket) error {
	query := `
		UPDATE tickets
		SET status = $1, response = $2, updated_at = $3
		WHERE id = $4
	`
	ticket.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query, ticket.Status, ticket.Response, ticket.UpdatedAt, ticket.ID)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("ticket", nil)
	}
	return nil
}

func (r *ticketRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Ticket, error) {
	query := `
		SELECT id, user_id, subject, message, status, response,
			   created_at, updated_at
		FROM tickets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	var tickets []*model.Ticket
	err := r.db.SelectContext(ctx, &tickets, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]*model.Ticket, error) {
	query := `
		SELECT id, user_id, subject, message, status, response,
			   created_at, updated_at
		FROM tickets
		WHERE status = $1
		ORDER BY created_at ASC
	`
	var tickets []*model.Ticket
	err := r.db.SelectContext(ctx, &tickets, query, model.TicketStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tickets: %w", err)
	}
	return tickets, nil
}

package ticket

import (
	"context"

	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
)

// Notifier queues a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, subject, content string) error
}

type Service struct {
	repo     repository.TicketRepository
	notifier Notifier
}

func NewService(repo repository.TicketRepository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

func (s *Service) Open(ctx context.Context, userID uuid.UUID, req *model.CreateTicketRequest) (*model.Ticket, error) {
	ticket := &model.Ticket{
		Base:    model.Base{ID: uuid.New()},
		UserID:  userID,
		Subject: req.Subject,
		Message: req.Message,
		Status:  model.TicketStatusOpen,
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return ticket, nil
}

// Respond answers an open ticket and notifies the reporter.
func (s *Service) Respond(ctx context.Context, id uuid.UUID, req *model.RespondTicketRequest) (*model.Ticket, error) {
	ticket, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status == model.TicketStatusClosed {
		return nil, apperrors.NewBadRequest("ticket is closed", nil)
	}

	ticket.Status = model.TicketStatusAnswered
	ticket.Response = &req.Response
	if err := s.repo.Update(ctx, ticket); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	// Best-effort; the response is already saved.
	_ = s.notifier.Notify(ctx, ticket.UserID, "Support ticket answered",
		"Your ticket \""+ticket.Subject+"\" has a response.")
	return ticket, nil
}

func (s *Service) Close(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	ticket, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status == model.TicketStatusClosed {
		return ticket, nil
	}

	ticket.Status = model.TicketStatusClosed
	if err := s.repo.Update(ctx, ticket); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return ticket, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Ticket, error) {
	tickets, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}
	return tickets, nil
}

func (s *Service) ListOpen(ctx context.Context) ([]*model.Ticket, error) {
	tickets, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, apperrors.NewDataUnavailable(err)
	}
	return tickets, nil
}

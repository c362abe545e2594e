package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	apperrors "github.com/medisuite/portal-api/pkg/errors"
	"github.com/medisuite/portal-api/pkg/logger"
	"github.com/medisuite/portal-api/pkg/messaging"
)

const (
	ChannelEmail = "email"

	// EventChannel is the broker channel dispatch workers subscribe to.
	EventChannel = "notifications"
)

// Service persists notifications as pending rows and nudges the dispatch
// worker over the broker. Delivery happens asynchronously; a failed enqueue is
// the only error callers ever see, and they treat even that as non-fatal.
type Service struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	broker   messaging.Broker
	logger   *logger.Logger
}

func NewService(repo repository.NotificationRepository, userRepo repository.UserRepository, broker messaging.Broker, logger *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		userRepo: userRepo,
		broker:   broker,
		logger:   logger,
	}
}

// Notify queues an email notification for the given user.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, subject, content string) error {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return apperrors.NewNotificationFailed(err)
	}

	notification := &model.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Channel:   ChannelEmail,
		Subject:   subject,
		Content:   content,
		Recipient: user.Email,
		Status:    model.NotificationStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return apperrors.NewNotificationFailed(err)
	}

	// Wake the dispatcher. The pending row is the source of truth, so a
	// publish failure only delays delivery until the next poll.
	event := messaging.Message{
		Type: "notification.queued",
		Payload: model.NotificationEvent{
			ID:             uuid.New(),
			NotificationID: notification.ID,
			UserID:         userID,
			Type:           "notification.queued",
			Content:        subject,
			CreatedAt:      time.Now(),
		},
	}
	if err := s.broker.Publish(ctx, EventChannel, event); err != nil {
		s.logger.Warn("failed to publish notification event", "notification_id", notification.ID, "error", err.Error())
	}
	return nil
}

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medisuite/portal-api/internal/email"
	"github.com/medisuite/portal-api/internal/model"
	"github.com/medisuite/portal-api/internal/repository"
	"github.com/medisuite/portal-api/pkg/logger"
	"github.com/medisuite/portal-api/pkg/messaging"
	"github.com/medisuite/portal-api/pkg/metrics"
)

type DispatcherConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// Dispatcher delivers queued notifications. Pending rows in the database are
// the source of truth; the broker subscription only cuts the latency between
// enqueue and the next poll.
type Dispatcher struct {
	repo    repository.NotificationRepository
	mailer  email.Service
	broker  messaging.Broker
	config  DispatcherConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(
	repo repository.NotificationRepository,
	mailer email.Service,
	broker messaging.Broker,
	config DispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Dispatcher {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &Dispatcher{
		repo:    repo,
		mailer:  mailer,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("Starting notification dispatcher")

	wake := d.subscribe(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Shutting down notification dispatcher")
			return
		case <-wake:
		case <-ticker.C:
		}
		if err := d.dispatchBatch(ctx); err != nil {
			d.logger.Error(err, "Failed to dispatch notifications")
		}
	}
}

func (d *Dispatcher) subscribe(ctx context.Context) <-chan []byte {
	wake, err := d.broker.Subscribe(ctx, "notifications")
	if err != nil {
		d.logger.Error(err, "Broker subscription unavailable, polling only")
		return nil
	}
	return wake
}

func (d *Dispatcher) dispatchBatch(ctx context.Context) error {
	timer := prometheus.NewTimer(d.metrics.DispatchLatency)
	defer timer.ObserveDuration()

	pending, err := d.repo.ListPending(ctx, d.config.BatchSize)
	if err != nil {
		d.metrics.DatabaseOperations.WithLabelValues("list_pending_notifications", "error").Inc()
		return fmt.Errorf("failed to list pending notifications: %w", err)
	}

	for _, notification := range pending {
		d.dispatch(ctx, notification)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, n *model.Notification) {
	err := d.mailer.Send(ctx, n.Recipient, n.Subject, n.Content)
	now := time.Now()

	if err == nil {
		n.Status = model.NotificationStatusSent
		n.SentAt = now
		n.UpdatedAt = now
		if uerr := d.repo.Update(ctx, n); uerr != nil {
			d.logger.Error(uerr, "failed to mark notification sent", "notification_id", n.ID)
			return
		}
		d.metrics.NotificationsSent.WithLabelValues(n.Channel).Inc()
		return
	}

	n.RetryCount++
	n.LastError = err.Error()
	n.UpdatedAt = now
	if n.RetryCount >= d.config.MaxRetries {
		n.Status = model.NotificationStatusFailed
		d.metrics.NotificationsFailed.WithLabelValues(n.Channel).Inc()
		d.logger.Error(err, "notification exhausted retries",
			"notification_id", n.ID, "retries", n.RetryCount)
	} else {
		// Linear backoff keeps a flapping SMTP server from being hammered.
		n.Status = model.NotificationStatusRetrying
		n.NextRetryAt = now.Add(time.Duration(n.RetryCount) * d.config.RetryDelay)
	}

	if uerr := d.repo.Update(ctx, n); uerr != nil {
		d.logger.Error(uerr, "failed to record notification failure", "notification_id", n.ID)
	}
}

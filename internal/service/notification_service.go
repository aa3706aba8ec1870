package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/events"
)

// NotificationService logs complaint events and forwards them to the
// configured webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventComplaintCreated, n.handleComplaintCreated)
	n.dispatcher.Subscribe(events.EventStageCompleted, n.handleStageCompleted)
	n.dispatcher.Subscribe(events.EventComplaintClosed, n.handleComplaintClosed)
	n.dispatcher.Subscribe(events.EventComplaintHoldChanged, n.handleHoldChanged)
}

func (n *NotificationService) handleComplaintCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("ComplaintCreated", zap.String("complaint_id", event.ComplaintID), zap.Any("payload", event.Payload))
	return n.deliverWebhook(ctx, event)
}

func (n *NotificationService) handleStageCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("StageCompleted", zap.String("complaint_id", event.ComplaintID), zap.Any("payload", event.Payload))
	return n.deliverWebhook(ctx, event)
}

func (n *NotificationService) handleComplaintClosed(ctx context.Context, event events.Event) error {
	n.logger.Info("ComplaintClosed", zap.String("complaint_id", event.ComplaintID))
	return n.deliverWebhook(ctx, event)
}

func (n *NotificationService) handleHoldChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("HoldChanged", zap.String("complaint_id", event.ComplaintID), zap.Any("payload", event.Payload))
	return n.deliverWebhook(ctx, event)
}

// deliverWebhook POSTs the event as JSON. Any non-2xx answer is an error.
func (n *NotificationService) deliverWebhook(ctx context.Context, event events.Event) error {
	if n.cfg.WebhookURL == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	status, body, errs := fiber.Post(n.cfg.WebhookURL).
		Timeout(n.cfg.WebhookTimeout()).
		Set("X-Event-Type", string(event.Type)).
		JSON(event).
		Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook %s: %w", event.Type, errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook %s: status %d: %s", event.Type, status, body)
	}
	n.logger.Debug("webhook delivered",
		zap.String("complaint_id", event.ComplaintID),
		zap.String("event_type", string(event.Type)),
		zap.Int("status", status))
	return nil
}

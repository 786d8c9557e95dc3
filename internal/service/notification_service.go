package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/config"
	"github.com/spec-kit/dispute-service/internal/events"
)

// NotificationService handles emitting notifications for dispute events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
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
	n.dispatcher.Subscribe(events.EventDisputeFiled, n.handleDisputeFiled)
	n.dispatcher.Subscribe(events.EventDisputeEscalated, n.handleDisputeEscalated)
	n.dispatcher.Subscribe(events.EventDisputeResolved, n.handleDisputeResolved)
	n.dispatcher.Subscribe(events.EventPartialRefundOffered, n.handlePartialRefundOffered)
	n.dispatcher.Subscribe(events.EventPartialRefundReplied, n.handlePartialRefundReplied)
	n.dispatcher.Subscribe(events.EventSettlementInstructed, n.handleSettlementInstructed)
}

func (n *NotificationService) handleDisputeFiled(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeFiled", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDisputeEscalated(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeEscalated", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDisputeResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("DisputeResolved", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePartialRefundOffered(ctx context.Context, event events.Event) error {
	n.logger.Info("PartialRefundOffered", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePartialRefundReplied(ctx context.Context, event events.Event) error {
	n.logger.Info("PartialRefundReplied", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSettlementInstructed(ctx context.Context, event events.Event) error {
	n.logger.Info("SettlementInstructed", zap.String("dispute_id", event.DisputeID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("dispute_id", event.DisputeID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("dispute_id", event.DisputeID),
		zap.String("event_type", string(event.Type)))
}

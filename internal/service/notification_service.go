package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-router/internal/events"
)

// WebhookQueue accepts events for asynchronous outbound delivery.
type WebhookQueue interface {
	Enqueue(event events.Event) bool
}

// NotificationService logs every domain event and forwards it to the webhook
// queue when one is configured.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	webhooks   WebhookQueue
}

// NewNotificationService creates the service. webhooks may be nil.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, webhooks WebhookQueue) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     loggerOrNop(logger),
		webhooks:   webhooks,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketClaimed, n.handleOwnershipChanged)
	n.dispatcher.Subscribe(events.EventTicketReleased, n.handleOwnershipChanged)
	n.dispatcher.Subscribe(events.EventTicketStateChanged, n.handleTicketStateChanged)
	n.dispatcher.Subscribe(events.EventTicketSLABreached, n.handleSLABreached)
	n.dispatcher.Subscribe(events.EventAreaChangeRequested, n.handleAreaChange)
	n.dispatcher.Subscribe(events.EventAreaChangeResolved, n.handleAreaChange)
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.forward(event)
	return nil
}

func (n *NotificationService) handleOwnershipChanged(_ context.Context, event events.Event) error {
	n.logger.Info("TicketOwnershipChanged",
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	n.forward(event)
	return nil
}

func (n *NotificationService) handleTicketStateChanged(_ context.Context, event events.Event) error {
	n.logger.Info("TicketStateChanged", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.forward(event)
	return nil
}

func (n *NotificationService) handleSLABreached(_ context.Context, event events.Event) error {
	n.logger.Warn("TicketSLABreached", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.forward(event)
	return nil
}

func (n *NotificationService) handleAreaChange(_ context.Context, event events.Event) error {
	n.logger.Info("AreaChange",
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	n.forward(event)
	return nil
}

func (n *NotificationService) forward(event events.Event) {
	if n.webhooks == nil {
		return
	}
	n.webhooks.Enqueue(event)
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/events"
	"github.com/spec-kit/ticketflow/internal/notify"
	"github.com/spec-kit/ticketflow/internal/observability"
	"github.com/spec-kit/ticketflow/internal/repository"
)

// Webhook delivers events to an external HTTP endpoint.
type Webhook interface {
	Send(ctx context.Context, event events.Event) error
}

// NotificationService turns ticket events into mail, stream entries and
// webhook calls. Every channel is optional and independent.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	mailer     notify.Mailer
	stream     notify.StreamPublisher
	webhook    Webhook
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NotificationDependencies bundles the delivery channels.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Users      repository.UserRepository
	Mailer     notify.Mailer
	Stream     notify.StreamPublisher
	Webhook    Webhook
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		users:      deps.Users,
		mailer:     deps.Mailer,
		stream:     deps.Stream,
		webhook:    deps.Webhook,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID))
	if creator := n.lookup(ctx, event.Ticket.CreatorID); creator != nil {
		n.sendMail(ctx, event, notify.TicketCreatedMail(event.Ticket, creator))
	}
	n.fanOut(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketStatusChanged",
		zap.String("ticket_id", event.TicketID),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)))
	if creator := n.lookup(ctx, event.Ticket.CreatorID); creator != nil {
		n.sendMail(ctx, event, notify.TicketStatusChangedMail(event.Ticket, creator, payload.OldStatus, payload.NewStatus))
	}
	n.fanOut(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketAssigned",
		zap.String("ticket_id", event.TicketID),
		zap.String("assignee_id", payload.AssigneeID))
	if assignee := n.lookup(ctx, payload.AssigneeID); assignee != nil {
		creator := n.lookup(ctx, event.Ticket.CreatorID)
		n.sendMail(ctx, event, notify.TicketAssignedMail(event.Ticket, assignee, creator))
	}
	n.fanOut(ctx, event)
	return nil
}

func (n *NotificationService) lookup(ctx context.Context, userID string) *domain.User {
	if n.users == nil || userID == "" {
		return nil
	}
	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		n.logger.Warn("notification recipient lookup failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	return user
}

func (n *NotificationService) sendMail(ctx context.Context, event events.Event, msg notify.Message) {
	if n.mailer == nil || msg.To == "" {
		return
	}
	err := n.mailer.Send(ctx, msg)
	n.metrics.RecordNotification("mail", err == nil)
	if err != nil {
		n.logger.Error("failed to send notification mail",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return
	}
	n.logger.Info("notification mail sent",
		zap.String("event_type", string(event.Type)),
		zap.String("to", msg.To))
}

func (n *NotificationService) fanOut(ctx context.Context, event events.Event) {
	if n.stream != nil {
		err := n.stream.Publish(ctx, event)
		n.metrics.RecordNotification("stream", err == nil)
		if err != nil {
			n.logger.Error("failed to append event to stream",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
	if n.webhook != nil {
		err := n.webhook.Send(ctx, event)
		n.metrics.RecordNotification("webhook", err == nil)
		if err != nil {
			n.logger.Error("failed to deliver webhook",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}

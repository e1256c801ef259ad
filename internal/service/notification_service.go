package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/analyticket/helpdesk/internal/config"
	"github.com/analyticket/helpdesk/internal/domain"
	"github.com/analyticket/helpdesk/internal/events"
	"github.com/analyticket/helpdesk/internal/repository"
)

// Notification is a message queued for the ticket owner.
type Notification struct {
	Channel   string
	Recipient string
	TicketID  string
	EventType events.EventType
}

// Notifier delivers notifications. Delivery itself lives outside this
// service.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the logger instead of sending them.
type LogNotifier struct {
	Logger *zap.Logger
	Cfg    config.NotificationConfig
}

// Notify logs the delivery request.
func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("channel", n.Channel),
		zap.String("recipient", n.Recipient),
		zap.String("ticket_id", n.TicketID),
		zap.String("event_type", string(n.EventType)),
	}
	switch n.Channel {
	case "email":
		fields = append(fields, zap.String("from", l.Cfg.EmailFrom))
	case "webhook":
		fields = append(fields, zap.String("url", l.Cfg.WebhookURL))
	}
	l.Logger.Debug("notification", fields...)
	return nil
}

// NotificationService reacts to ticket events and honours the owner's
// preferences.
type NotificationService struct {
	dispatcher events.Dispatcher
	prefs      repository.NotificationPreferenceRepository
	notifier   Notifier
	logger     *zap.Logger
	cfg        config.NotificationConfig
	once       sync.Once
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, prefs repository.NotificationPreferenceRepository, notifier Notifier, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger, Cfg: cfg}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		prefs:      prefs,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events. Repeated calls are no-ops.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.once.Do(func() {
		n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
		n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
		n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
		n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
	})
}

// GetPreferences returns the caller's settings.
func (n *NotificationService) GetPreferences(ctx context.Context, p domain.Principal) (*domain.NotificationPreferences, error) {
	prefs, err := n.prefs.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

// PreferencesUpdate holds optional changes to notification settings.
type PreferencesUpdate struct {
	EmailOnStatusChange *bool
	EmailOnNewMessage   *bool
	EmailOnAssignment   *bool
}

// UpdatePreferences applies the non-nil fields and stores the result.
func (n *NotificationService) UpdatePreferences(ctx context.Context, p domain.Principal, update PreferencesUpdate) (*domain.NotificationPreferences, error) {
	prefs, err := n.prefs.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if update.EmailOnStatusChange != nil {
		prefs.EmailOnStatusChange = *update.EmailOnStatusChange
	}
	if update.EmailOnNewMessage != nil {
		prefs.EmailOnNewMessage = *update.EmailOnNewMessage
	}
	if update.EmailOnAssignment != nil {
		prefs.EmailOnAssignment = *update.EmailOnAssignment
	}
	prefs.UserID = p.ID
	if err := n.prefs.Upsert(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID))
	return n.webhook(ctx, event)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return errors.Join(
		n.webhook(ctx, event),
		n.emailOwner(ctx, event, func(p *domain.NotificationPreferences) bool { return p.EmailOnStatusChange }),
	)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return errors.Join(
		n.webhook(ctx, event),
		n.emailOwner(ctx, event, func(p *domain.NotificationPreferences) bool { return p.EmailOnAssignment }),
	)
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketMessageAdded", zap.String("ticket_id", event.TicketID))
	return n.emailOwner(ctx, event, func(p *domain.NotificationPreferences) bool { return p.EmailOnNewMessage })
}

// emailOwner mails the ticket owner when they opted in. Owners are never
// notified about their own actions.
func (n *NotificationService) emailOwner(ctx context.Context, event events.Event, wants func(*domain.NotificationPreferences) bool) error {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || event.OwnerID == "" || event.OwnerID == event.Actor.ID {
		return nil
	}
	if n.prefs == nil {
		return nil
	}
	prefs, err := n.prefs.Get(ctx, event.OwnerID)
	if err != nil {
		return err
	}
	if !wants(prefs) {
		return nil
	}
	return n.notifier.Notify(ctx, Notification{
		Channel:   "email",
		Recipient: event.OwnerID,
		TicketID:  event.TicketID,
		EventType: event.Type,
	})
}

func (n *NotificationService) webhook(ctx context.Context, event events.Event) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	return n.notifier.Notify(ctx, Notification{
		Channel:   "webhook",
		Recipient: n.cfg.WebhookURL,
		TicketID:  event.TicketID,
		EventType: event.Type,
	})
}

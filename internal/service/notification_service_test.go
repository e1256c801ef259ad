package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/analyticket/helpdesk/internal/config"
	"github.com/analyticket/helpdesk/internal/domain"
	"github.com/analyticket/helpdesk/internal/events"
)

type captureNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (c *captureNotifier) Notify(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return nil
}

func (c *captureNotifier) channels() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]int{}
	for _, n := range c.got {
		out[n.Channel]++
	}
	return out
}

func TestNotificationsHonourPreferences(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	prefs := &memPrefs{}
	notifier := &captureNotifier{}
	svc := NewNotificationService(dispatcher, prefs, notifier, nil, config.NotificationConfig{EmailFrom: "desk@example.com"})
	svc.RegisterHandlers()
	svc.RegisterHandlers()
	ctx := context.Background()

	publish := func(et events.EventType, actor domain.Principal) {
		t.Helper()
		if err := dispatcher.Publish(ctx, events.Event{Type: et, TicketID: "t1", OwnerID: "u1", Actor: actor}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	publish(events.EventTicketMessageAdded, agentA)
	publish(events.EventTicketMessageAdded, owner)
	publish(events.EventTicketAssigned, admin)
	if got := notifier.channels()["email"]; got != 1 {
		t.Fatalf("expected one email with default preferences, got %d", got)
	}

	off := false
	if _, err := svc.UpdatePreferences(ctx, owner, PreferencesUpdate{EmailOnNewMessage: &off}); err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	publish(events.EventTicketMessageAdded, agentA)
	publish(events.EventTicketStatusChanged, agentA)
	if got := notifier.channels()["email"]; got != 2 {
		t.Fatalf("expected status change mail only, got %d emails", got)
	}

	stored, err := svc.GetPreferences(ctx, owner)
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if stored.EmailOnNewMessage || !stored.EmailOnStatusChange {
		t.Fatalf("unexpected stored preferences %+v", stored)
	}
}

func TestWebhookNotifications(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &captureNotifier{}
	svc := NewNotificationService(dispatcher, &memPrefs{}, notifier, nil, config.NotificationConfig{WebhookURL: "http://hooks.local/desk"})
	svc.RegisterHandlers()

	for _, et := range []events.EventType{events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketMessageAdded} {
		if err := dispatcher.Publish(context.Background(), events.Event{Type: et, TicketID: "t1", OwnerID: "u1", Actor: agentA}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	got := notifier.channels()
	if got["webhook"] != 2 || got["email"] != 0 {
		t.Fatalf("unexpected deliveries %v", got)
	}
}

type webhookDownNotifier struct {
	captureNotifier
}

var errWebhookDown = errors.New("webhook queue full")

func (w *webhookDownNotifier) Notify(ctx context.Context, n Notification) error {
	if n.Channel == "webhook" {
		return errWebhookDown
	}
	return w.captureNotifier.Notify(ctx, n)
}

func TestEmailSentWhenWebhookFails(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &webhookDownNotifier{}
	svc := NewNotificationService(dispatcher, &memPrefs{}, notifier, nil, config.NotificationConfig{
		WebhookURL: "http://hooks.local/desk",
		EmailFrom:  "desk@example.com",
	})
	svc.RegisterHandlers()

	for _, et := range []events.EventType{events.EventTicketStatusChanged, events.EventTicketAssigned} {
		err := dispatcher.Publish(context.Background(), events.Event{Type: et, TicketID: "t1", OwnerID: "u1", Actor: agentA})
		if !errors.Is(err, errWebhookDown) {
			t.Fatalf("%s: expected webhook failure to surface, got %v", et, err)
		}
	}
	if got := notifier.channels()["email"]; got != 2 {
		t.Fatalf("expected owner mailed despite webhook failure, got %d emails", got)
	}
}

package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/analyticket/helpdesk/internal/audit"
	"github.com/analyticket/helpdesk/internal/domain"
	"github.com/analyticket/helpdesk/internal/policy"
	"github.com/analyticket/helpdesk/internal/repository"
)

type memTickets struct {
	mu    sync.Mutex
	byID  map[string]domain.Ticket
	order []string
}

func newMemTickets(tickets ...domain.Ticket) *memTickets {
	m := &memTickets{byID: map[string]domain.Ticket{}}
	for _, t := range tickets {
		m.byID[t.ID] = t
		m.order = append(m.order, t.ID)
	}
	return m
}

func (m *memTickets) Create(_ context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	m.byID[t.ID] = *t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *memTickets) Update(_ context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.byID[t.ID] = *t
	return nil
}

func (m *memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (m *memTickets) ListVisible(_ context.Context, pred policy.Predicate, filter repository.TicketFilter) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ticket
	for _, id := range m.order {
		t := m.byID[id]
		if !pred.Matches(&t, repository.AgentQueue{}) {
			continue
		}
		if filter.SearchTerm != nil && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(*filter.SearchTerm)) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memTickets) CountByStatus(ctx context.Context, pred policy.Predicate) (map[domain.TicketStatus]int, error) {
	list, _ := m.ListVisible(ctx, pred, repository.TicketFilter{})
	counts := map[domain.TicketStatus]int{}
	for _, t := range list {
		counts[t.Status]++
	}
	return counts, nil
}

type memMessages struct {
	mu   sync.Mutex
	msgs []domain.TicketMessage
}

func (m *memMessages) Create(_ context.Context, msg *domain.TicketMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = "msg-" + string(rune('a'+len(m.msgs)))
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memMessages) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.TicketMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketMessage
	for _, msg := range m.msgs {
		if msg.TicketID == ticketID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type memHistory struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (m *memHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *h)
	return nil
}

func (m *memHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range m.entries {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*domain.User
	seq  int
}

func newMemUsers(users ...domain.User) *memUsers {
	m := &memUsers{byID: map[string]*domain.User{}}
	for i := range users {
		u := users[i]
		m.byID[u.ID] = &u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	u.ID = "user-" + string(rune('0'+m.seq))
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memStats struct {
	mu     sync.Mutex
	values map[string]map[domain.TicketStatus]int
	sets   int
}

func (m *memStats) Get(_ context.Context, key string) (map[domain.TicketStatus]int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStats) Set(_ context.Context, key string, counts map[domain.TicketStatus]int, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]map[domain.TicketStatus]int{}
	}
	m.values[key] = counts
	m.sets++
	return nil
}

func (m *memStats) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = nil
	return nil
}

type memPrefs struct {
	mu    sync.Mutex
	saved map[string]domain.NotificationPreferences
}

func (m *memPrefs) Get(_ context.Context, userID string) (*domain.NotificationPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.saved[userID]; ok {
		return &p, nil
	}
	p := domain.DefaultNotificationPreferences(userID)
	return &p, nil
}

func (m *memPrefs) Upsert(_ context.Context, p *domain.NotificationPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]domain.NotificationPreferences{}
	}
	m.saved[p.UserID] = *p
	return nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) snapshot() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Event(nil), r.events...)
}

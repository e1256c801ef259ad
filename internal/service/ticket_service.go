package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/analyticket/helpdesk/internal/domain"
	"github.com/analyticket/helpdesk/internal/events"
	"github.com/analyticket/helpdesk/internal/observability"
	"github.com/analyticket/helpdesk/internal/policy"
	"github.com/analyticket/helpdesk/internal/repository"
	apperrors "github.com/analyticket/helpdesk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows. Every list goes through
// policy.FilterVisible and every single-ticket operation through the
// validator before touching the store.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	stats      repository.StatsCache
	statsTTL   time.Duration
	validator  *policy.Validator
	clock      policy.Clock
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	StatsCache  repository.StatsCache
	StatsTTL    time.Duration
	Validator   *policy.Validator
	Clock       policy.Clock
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// TicketUpdateInput carries optional edits to ticket details.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Category    *string
	Priority    *domain.TicketPriority
}

// TicketListInput describes listing options.
type TicketListInput struct {
	AllAgents bool
	Filter    repository.TicketFilter
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = policy.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validator := deps.Validator
	if validator == nil {
		validator = policy.NewValidator(nil)
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		stats:      deps.StatsCache,
		statsTTL:   deps.StatsTTL,
		validator:  validator,
		clock:      clock,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// CreateTicket opens a ticket owned by the principal.
func (s *TicketService) CreateTicket(ctx context.Context, p domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if !p.Role.Valid() {
		return nil, policyFailure(&policy.PolicyError{Kind: policy.InvalidRole, Role: string(p.Role)})
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		CreatedBy:   p.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidateStats(ctx)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		OwnerID:  ticket.CreatedBy,
		Actor:    p,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Category: ticket.Category,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// ListTickets returns the tickets the principal may see, narrowed by the
// caller's filter. Search terms never widen the visible set.
func (s *TicketService) ListTickets(ctx context.Context, p domain.Principal, input TicketListInput) ([]domain.Ticket, error) {
	pred, err := policy.FilterVisible(p, policy.Options{AllAgents: input.AllAgents}, s.clock.Now())
	if err != nil {
		return nil, policyFailure(err)
	}
	tickets, err := s.tickets.ListVisible(ctx, pred, input.Filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket loads a ticket the principal may read.
func (s *TicketService) GetTicket(ctx context.Context, p domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, _, err := s.loadAuthorized(ctx, p, ticketID, domain.ActionRead)
	return ticket, err
}

// UpdateTicket edits title, description, category or priority.
func (s *TicketService) UpdateTicket(ctx context.Context, p domain.Principal, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, _, err := s.loadAuthorized(ctx, p, ticketID, domain.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticket.ID})
	}

	oldPriority := ticket.Priority
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", nil)
		}
		ticket.Title = title
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		ticket.Category = strings.TrimSpace(*input.Category)
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if ticket.Priority != oldPriority {
		s.recordHistory(ctx, p, ticket.ID, domain.ChangeTypePriority,
			map[string]any{"priority": oldPriority},
			map[string]any{"priority": ticket.Priority})
	}
	return ticket, nil
}

// UpdateStatus moves a ticket through its lifecycle. Closing stamps
// closed_at; a closed ticket cannot change status again.
func (s *TicketService) UpdateStatus(ctx context.Context, p domain.Principal, ticketID string, next domain.TicketStatus) (*domain.Ticket, error) {
	if !next.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": next})
	}
	action := domain.ActionUpdate
	if next == domain.TicketStatusClosed {
		action = domain.ActionClose
	}
	ticket, now, err := s.loadAuthorized(ctx, p, ticketID, action)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	if err := ticket.Transition(next, now); err != nil {
		return nil, transitionError(err, oldStatus, next)
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidateStats(ctx)
	s.recordHistory(ctx, p, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": ticket.Status})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		OwnerID:  ticket.CreatedBy,
		Actor:    p,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		},
	})
	return ticket, nil
}

// ClaimTicket assigns an unassigned ticket to the calling agent. Claiming an
// open ticket starts work on it.
func (s *TicketService) ClaimTicket(ctx context.Context, p domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, now, err := s.loadAuthorized(ctx, p, ticketID, domain.ActionClaim)
	if err != nil {
		return nil, err
	}
	if ticket.IsAssignedTo(p.ID) {
		return ticket, nil
	}
	return s.assign(ctx, p, ticket, p.ID, now)
}

// AssignTicket hands a ticket to the given agent.
func (s *TicketService) AssignTicket(ctx context.Context, p domain.Principal, ticketID, agentID string) (*domain.Ticket, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, apperrors.NewValidationError("agent_id required", nil)
	}
	ticket, now, err := s.loadAuthorized(ctx, p, ticketID, domain.ActionAssign)
	if err != nil {
		return nil, err
	}
	agent, err := s.users.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if !agent.Role.IsStaff() {
		return nil, apperrors.NewValidationError("assignee must be an agent or admin", map[string]any{"agent_id": agentID})
	}
	if ticket.IsAssignedTo(agent.ID) {
		return ticket, nil
	}
	return s.assign(ctx, p, ticket, agent.ID, now)
}

func (s *TicketService) assign(ctx context.Context, p domain.Principal, ticket *domain.Ticket, agentID string, now time.Time) (*domain.Ticket, error) {
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticket.ID})
	}
	oldAssignee := ticket.AssignedTo
	oldStatus := ticket.Status
	ticket.AssignedTo = &agentID
	ticket.AssigneeName = nil
	if ticket.Status == domain.TicketStatusOpen {
		if err := ticket.Transition(domain.TicketStatusInProgress, now); err != nil {
			return nil, transitionError(err, oldStatus, domain.TicketStatusInProgress)
		}
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidateStats(ctx)
	s.recordHistory(ctx, p, ticket.ID, domain.ChangeTypeAssignee,
		map[string]any{"assigned_to": oldAssignee},
		map[string]any{"assigned_to": agentID})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		OwnerID:  ticket.CreatedBy,
		Actor:    p,
		Payload: events.TicketAssignedPayload{
			OldAssignee: oldAssignee,
			NewAssignee: agentID,
		},
	})
	return ticket, nil
}

// ListMessages returns the chat thread of a readable ticket.
func (s *TicketService) ListMessages(ctx context.Context, p domain.Principal, ticketID string, limit, offset int) ([]domain.TicketMessage, error) {
	ticket, _, err := s.loadAuthorized(ctx, p, ticketID, domain.ActionRead)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// AddMessage posts to a ticket's chat thread.
func (s *TicketService) AddMessage(ctx context.Context, p domain.Principal, ticketID, body string) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	ticket, _, err := s.loadAuthorized(ctx, p, ticketID, domain.ActionComment)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticket.ID})
	}

	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		AuthorID:   p.ID,
		AuthorRole: p.Role,
		Body:       body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		OwnerID:  ticket.CreatedBy,
		Actor:    p,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			AuthorID:    msg.AuthorID,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	})
	return msg, nil
}

// ListHistory returns the change trail of a readable ticket.
func (s *TicketService) ListHistory(ctx context.Context, p domain.Principal, ticketID string) ([]domain.TicketHistory, error) {
	ticket, _, err := s.loadAuthorized(ctx, p, ticketID, domain.ActionRead)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	history, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// Stats counts visible tickets per status for the analytics dashboard.
func (s *TicketService) Stats(ctx context.Context, p domain.Principal, allAgents bool) (map[domain.TicketStatus]int, error) {
	pred, err := policy.FilterVisible(p, policy.Options{AllAgents: allAgents}, s.clock.Now())
	if err != nil {
		return nil, policyFailure(err)
	}

	key := statsKey(p, pred)
	if s.stats != nil {
		counts, ok, err := s.stats.Get(ctx, key)
		if err != nil {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		} else if ok {
			return counts, nil
		}
	}

	counts, err := s.tickets.CountByStatus(ctx, pred)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if counts == nil {
		counts = make(map[domain.TicketStatus]int, 4)
	}
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	if s.stats != nil && s.statsTTL > 0 {
		if err := s.stats.Set(ctx, key, counts, s.statsTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return counts, nil
}

func (s *TicketService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx); err != nil {
		s.logger.Warn("stats cache invalidate failed", zap.Error(err))
	}
}

func statsKey(p domain.Principal, pred policy.Predicate) string {
	return string(p.Role) + ":" + p.ID + ":" + string(pred.Scope)
}

// loadAuthorized fetches the ticket and runs the validator at a single
// reference instant, which it returns for any follow-up time stamping.
func (s *TicketService) loadAuthorized(ctx context.Context, p domain.Principal, ticketID string, action domain.Action) (*domain.Ticket, time.Time, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, time.Time{}, ticketLookupError(err, ticketID)
	}
	now := s.clock.Now()
	decision := s.validator.Authorize(ctx, p, ticket, action, now)
	if !decision.Allowed() {
		s.metrics.RecordDenial(string(action), string(decision.Reason))
		return nil, now, deniedError(decision, ticket.ID)
	}
	return ticket, now, nil
}

func (s *TicketService) recordHistory(ctx context.Context, p domain.Principal, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: p.ID,
		ChangedRole: p.Role,
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("record ticket history", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/analyticket/helpdesk/internal/domain"
	"github.com/analyticket/helpdesk/internal/policy"
)

// TicketFilter narrows a visibility predicate with caller supplied criteria.
// It can only remove rows from what the predicate selects.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Category   *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListVisible(ctx context.Context, pred policy.Predicate, filter TicketFilter) ([]domain.Ticket, error)
	CountByStatus(ctx context.Context, pred policy.Predicate) (map[domain.TicketStatus]int, error)
}

// AgentQueue is the store's definition of the agent work queue: unassigned
// tickets that are still open. queueSQL must express the same rule.
type AgentQueue struct{}

// InAgentQueue implements policy.QueueMembership.
func (AgentQueue) InAgentQueue(t *domain.Ticket) bool {
	return !t.IsAssigned() && t.Status == domain.TicketStatusOpen
}

// Page size bounds shared by every paginated listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const queueSQL = `(t.assigned_to IS NULL AND t.status = 'open')`

const ticketColumns = `t.id, t.created_by, t.assigned_to, t.title, t.description, t.category,
               t.status, t.priority, t.created_at, t.updated_at, t.closed_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, created_by, assigned_to, title, description, category, status, priority)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update writes mutable fields. closed_at is only written while it is still
// NULL so a closure timestamp can never move.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assigned_to=$1, title=$2, description=$3, category=$4,
            status=$5, priority=$6, closed_at=COALESCE(closed_at, $7), updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.AssignedTo,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Status,
		ticket.Priority,
		ticket.ClosedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

// GetByID returns pgx.ErrNoRows for ids that are not UUIDs without querying.
func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pgx.ErrNoRows
	}
	query := `SELECT ` + ticketColumns + `, a.name
        FROM tickets t LEFT JOIN users a ON a.id = t.assigned_to
        WHERE t.id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) ListVisible(ctx context.Context, pred policy.Predicate, filter TicketFilter) ([]domain.Ticket, error) {
	query, args := buildListQuery(pred, filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByStatus(ctx context.Context, pred policy.Predicate) (map[domain.TicketStatus]int, error) {
	var args []any
	where := visibilityClause(pred, &args)
	query := `SELECT t.status, COUNT(*) FROM tickets t WHERE ` + where + ` GROUP BY t.status`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// visibilityClause compiles pred into a WHERE fragment, appending its
// parameters to args. Unknown scopes select nothing.
func visibilityClause(pred policy.Predicate, args *[]any) string {
	switch pred.Scope {
	case policy.ScopeAll:
		return "TRUE"
	case policy.ScopeAssignedOrQueue:
		*args = append(*args, pred.PrincipalID)
		return fmt.Sprintf("(t.assigned_to = $%d OR %s)", len(*args), queueSQL)
	case policy.ScopeAnyAssigned:
		return "t.assigned_to IS NOT NULL"
	case policy.ScopeOwnedRecent:
		*args = append(*args, pred.PrincipalID)
		owner := len(*args)
		*args = append(*args, pred.ClosedSince)
		since := len(*args)
		return fmt.Sprintf(
			"(t.created_by = $%d AND (t.status IN ('open','in_progress','resolved') OR (t.status = 'closed' AND t.closed_at >= $%d)))",
			owner, since)
	default:
		return "FALSE"
	}
}

func buildListQuery(pred policy.Predicate, filter TicketFilter) (string, []any) {
	args := []any{}
	clauses := []string{visibilityClause(pred, &args)}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != nil && strings.TrimSpace(*filter.Category) != "" {
		args = append(args, strings.TrimSpace(*filter.Category))
		clauses = append(clauses, fmt.Sprintf("t.category = $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(t.title) LIKE %s OR LOWER(t.description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	assignee := "NULL::text"
	join := ""
	if pred.WithAssignee {
		assignee = "a.name"
		join = " LEFT JOIN users a ON a.id = t.assigned_to"
	}

	query := fmt.Sprintf(`SELECT %s, %s FROM tickets t%s WHERE %s ORDER BY t.updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, assignee, join, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.Status,
			&ticket.Priority,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ClosedAt,
			&ticket.AssigneeName,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

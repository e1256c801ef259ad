package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/analyticket/helpdesk/internal/domain"
)

// TicketHistoryRepository stores the change trail of tickets. Entries are
// append-only.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	row := r.pool.QueryRow(ctx, `
        INSERT INTO ticket_history (ticket_id, changed_by_id, changed_role, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`,
		entry.TicketID, entry.ChangedByID, string(entry.ChangedRole), string(entry.ChangeType),
		entry.OldValue, entry.NewValue,
	)
	return row.Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, ticket_id, changed_by_id, changed_role, change_type, old_value, new_value, created_at
        FROM ticket_history
        WHERE ticket_id=$1
        ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanHistoryEntry)
}

func scanHistoryEntry(row pgx.CollectableRow) (domain.TicketHistory, error) {
	var (
		entry      domain.TicketHistory
		role       string
		changeType string
	)
	err := row.Scan(
		&entry.ID, &entry.TicketID, &entry.ChangedByID, &role, &changeType,
		&entry.OldValue, &entry.NewValue, &entry.CreatedAt,
	)
	entry.ChangedRole = domain.ParseRole(role)
	entry.ChangeType = domain.TicketChangeType(changeType)
	return entry, err
}

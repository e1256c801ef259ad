package audit

import (
	"context"
	"database/sql"
)

// SQLSink writes events to the audit_events table.
type SQLSink struct {
	db *sql.DB
}

// NewSQLSink wraps an open database handle.
func NewSQLSink(db *sql.DB) *SQLSink {
	return &SQLSink{db: db}
}

// Record inserts the event. Replays of the same id are ignored.
func (s *SQLSink) Record(ctx context.Context, event Event) error {
	const query = `
        INSERT INTO audit_events (id, principal_id, principal_role, ticket_id, action, reason, outcome, request_id, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.PrincipalID,
		string(event.PrincipalRole),
		event.TicketID,
		event.Action,
		event.Reason,
		string(event.Outcome),
		event.RequestID,
		event.OccurredAt,
	)
	return err
}

// CountByPrincipal returns how many denials a principal has accumulated.
// Callers needing durability confirmation poll this instead of waiting on
// Authorize.
func (s *SQLSink) CountByPrincipal(ctx context.Context, principalID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE principal_id=$1`, principalID).Scan(&n)
	return n, err
}

package audit

import (
	"context"
	"strings"
	"time"

	"github.com/analyticket/helpdesk/internal/domain"
	"github.com/analyticket/helpdesk/internal/ids"
)

// Outcome of an audited access attempt. Only denials are recorded.
type Outcome string

const OutcomeDenied Outcome = "denied"

// Event is an immutable record of a denied access attempt.
type Event struct {
	ID            string      `json:"id"`
	PrincipalID   string      `json:"principal_id"`
	PrincipalRole domain.Role `json:"principal_role"`
	TicketID      string      `json:"ticket_id"`
	Action        string      `json:"action"`
	Reason        string      `json:"reason"`
	Outcome       Outcome     `json:"outcome"`
	RequestID     string      `json:"request_id,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// NewDenial shapes a denial event for the given attempt.
func NewDenial(p domain.Principal, ticketID, action, reason string, at time.Time) Event {
	return Event{
		ID:            ids.New(at),
		PrincipalID:   p.ID,
		PrincipalRole: p.Role,
		TicketID:      ticketID,
		Action:        action,
		Reason:        reason,
		Outcome:       OutcomeDenied,
		OccurredAt:    at.UTC(),
	}
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit events.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

package policy

import (
	"context"
	"time"

	"github.com/analyticket/helpdesk/internal/audit"
	"github.com/analyticket/helpdesk/internal/domain"
)

// AuditEmitter accepts denial events without blocking the caller.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

// Validator authorizes single-ticket reads and mutations. It holds no
// per-call state and is safe for concurrent use.
type Validator struct {
	audit AuditEmitter
}

// NewValidator builds a validator. A nil emitter disables auditing.
func NewValidator(emitter AuditEmitter) *Validator {
	return &Validator{audit: emitter}
}

// Authorize decides whether p may perform action on t at now. Every denial
// emits exactly one audit event before returning.
func (v *Validator) Authorize(ctx context.Context, p domain.Principal, t *domain.Ticket, action domain.Action, now time.Time) Decision {
	d := decide(p, t, action, now)
	if !d.Allow {
		v.emit(ctx, p, t, action, d.Reason, now)
	}
	return d
}

func decide(p domain.Principal, t *domain.Ticket, action domain.Action, now time.Time) Decision {
	switch p.Role {
	case domain.RoleAdmin:
		return allow()
	case domain.RoleAgent:
		if !action.IsMutation() {
			return allow()
		}
		if t.IsAssignedTo(p.ID) {
			return allow()
		}
		if action == domain.ActionClaim && !t.IsAssigned() {
			return allow()
		}
		return deny(DenyNotAssigned)
	case domain.RoleUser:
		if !t.IsOwnedBy(p.ID) {
			return deny(DenyNotOwner)
		}
		if !WithinRetention(t, now) {
			return deny(DenyExpired)
		}
		if action == domain.ActionClaim || action == domain.ActionAssign {
			return deny(DenyNotAssigned)
		}
		return allow()
	default:
		return deny(DenyInvalidRole)
	}
}

func (v *Validator) emit(ctx context.Context, p domain.Principal, t *domain.Ticket, action domain.Action, reason DenyReason, now time.Time) {
	if v == nil || v.audit == nil {
		return
	}
	event := audit.NewDenial(p, t.ID, string(action), string(reason), now)
	event.RequestID = audit.RequestIDFromContext(ctx)
	v.audit.Emit(ctx, event)
}

package policy

import (
	"time"

	"github.com/analyticket/helpdesk/internal/domain"
)

// ClosedRetention is how long an owner keeps seeing a ticket after it closes.
const ClosedRetention = 7 * 24 * time.Hour

// Options tune FilterVisible.
type Options struct {
	// AllAgents lists every assigned ticket, not only the caller's. Only
	// agents and admins may set it.
	AllAgents bool
}

// Scope names the shape of a visibility predicate.
type Scope string

const (
	ScopeAll             Scope = "all"
	ScopeAssignedOrQueue Scope = "assigned_or_queue"
	ScopeAnyAssigned     Scope = "any_assigned"
	ScopeOwnedRecent     Scope = "owned_recent"
)

// Predicate is a store-independent filter condition. Repositories compile it
// into their query language; Matches evaluates it in process.
type Predicate struct {
	Scope       Scope
	PrincipalID string
	// ClosedSince is the earliest closed_at still visible for ScopeOwnedRecent.
	ClosedSince time.Time
	// WithAssignee asks the store to surface the assigned agent's identity.
	WithAssignee bool
}

// QueueMembership decides whether an unassigned ticket waits in the agent
// queue. The rule belongs to the ticket store.
type QueueMembership interface {
	InAgentQueue(t *domain.Ticket) bool
}

// FilterVisible returns the predicate selecting the tickets p may list at now.
func FilterVisible(p domain.Principal, opts Options, now time.Time) (Predicate, error) {
	switch p.Role {
	case domain.RoleAdmin:
		// Admins are never restricted; all-agent mode only adds attribution.
		return Predicate{Scope: ScopeAll, PrincipalID: p.ID, WithAssignee: opts.AllAgents}, nil
	case domain.RoleAgent:
		if opts.AllAgents {
			return Predicate{Scope: ScopeAnyAssigned, PrincipalID: p.ID, WithAssignee: true}, nil
		}
		return Predicate{Scope: ScopeAssignedOrQueue, PrincipalID: p.ID}, nil
	case domain.RoleUser:
		if opts.AllAgents {
			return Predicate{}, &PolicyError{Kind: Forbidden, Role: string(p.Role)}
		}
		return Predicate{
			Scope:       ScopeOwnedRecent,
			PrincipalID: p.ID,
			ClosedSince: now.Add(-ClosedRetention),
		}, nil
	default:
		return Predicate{}, &PolicyError{Kind: InvalidRole, Role: string(p.Role)}
	}
}

// Matches evaluates the predicate against a ticket. A nil queue means no
// ticket is queued.
func (pr Predicate) Matches(t *domain.Ticket, queue QueueMembership) bool {
	switch pr.Scope {
	case ScopeAll:
		return true
	case ScopeAssignedOrQueue:
		if t.IsAssignedTo(pr.PrincipalID) {
			return true
		}
		return !t.IsAssigned() && queue != nil && queue.InAgentQueue(t)
	case ScopeAnyAssigned:
		return t.IsAssigned()
	case ScopeOwnedRecent:
		if !t.IsOwnedBy(pr.PrincipalID) {
			return false
		}
		if t.Status != domain.TicketStatusClosed {
			return true
		}
		return t.ClosedAt != nil && !t.ClosedAt.Before(pr.ClosedSince)
	default:
		return false
	}
}

// WithinRetention reports whether the ticket is still inside the owner's
// visibility window at now. Non-closed tickets always are.
func WithinRetention(t *domain.Ticket, now time.Time) bool {
	switch t.Status {
	case domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved:
		return true
	case domain.TicketStatusClosed:
		if t.ClosedAt == nil {
			return false
		}
		return now.Sub(*t.ClosedAt) <= ClosedRetention
	default:
		return false
	}
}

package domain

import (
	"errors"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is known.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	default:
		return false
	}
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is known.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTicketClosed is returned when changing a ticket that is already closed.
	ErrTicketClosed = errors.New("ticket is closed")
)

// Ticket is the aggregate for support requests.
//
// ClosedAt is non-nil iff Status is closed. It is written once, by Transition.
type Ticket struct {
	ID           string
	CreatedBy    string
	AssignedTo   *string
	AssigneeName *string
	Title        string
	Description  string
	Category     string
	Status       TicketStatus
	Priority     TicketPriority
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
}

// IsAssigned reports whether an agent owns the ticket.
func (t *Ticket) IsAssigned() bool {
	return t.AssignedTo != nil && *t.AssignedTo != ""
}

// IsAssignedTo reports whether the ticket is assigned to the given agent.
func (t *Ticket) IsAssignedTo(agentID string) bool {
	return t.IsAssigned() && *t.AssignedTo == agentID
}

// IsOwnedBy reports whether the ticket was created by the given principal.
func (t *Ticket) IsOwnedBy(userID string) bool {
	return t.CreatedBy != "" && t.CreatedBy == userID
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusOpen, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:   {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusClosed:     {},
}

// CanTransition reports whether current -> next is an allowed change.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transition moves the ticket to next, stamping ClosedAt when it closes.
func (t *Ticket) Transition(next TicketStatus, now time.Time) error {
	if t.Status == TicketStatusClosed {
		return ErrTicketClosed
	}
	if !CanTransition(t.Status, next) {
		return ErrInvalidTransition
	}
	t.Status = next
	if next == TicketStatusClosed {
		closedAt := now
		t.ClosedAt = &closedAt
	}
	return nil
}

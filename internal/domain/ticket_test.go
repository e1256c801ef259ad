package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTicketTransitionStampsClosedAtOnce(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ticket := &Ticket{Status: TicketStatusResolved}

	if err := ticket.Transition(TicketStatusClosed, now); err != nil {
		t.Fatalf("close: %v", err)
	}
	if ticket.ClosedAt == nil || !ticket.ClosedAt.Equal(now) {
		t.Fatalf("closed_at not stamped: %v", ticket.ClosedAt)
	}

	later := now.Add(time.Hour)
	if err := ticket.Transition(TicketStatusOpen, later); !errors.Is(err, ErrTicketClosed) {
		t.Fatalf("expected ErrTicketClosed, got %v", err)
	}
	if !ticket.ClosedAt.Equal(now) {
		t.Fatalf("closed_at rewritten: %v", ticket.ClosedAt)
	}
}

func TestTicketTransitionRejectsUnknownPath(t *testing.T) {
	ticket := &Ticket{Status: TicketStatusResolved}
	if err := ticket.Transition(TicketStatusOpen, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if ticket.ClosedAt != nil {
		t.Fatalf("closed_at must stay nil for open tickets")
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"user":   RoleUser,
		" Agent": RoleAgent,
		"ADMIN":  RoleAdmin,
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want || !got.Valid() {
			t.Fatalf("ParseRole(%q)=%q valid=%v", in, got, got.Valid())
		}
	}
	if ParseRole("guest").Valid() {
		t.Fatalf("guest must not be a valid role")
	}
	if Role("").Valid() {
		t.Fatalf("empty role must not be valid")
	}
}

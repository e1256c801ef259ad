package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/analyticket/helpdesk/internal/audit"
	"github.com/analyticket/helpdesk/internal/domain"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestAuthorizeUserNotOwner(t *testing.T) {
	rec := &recordingEmitter{}
	v := NewValidator(rec)
	ticket := &domain.Ticket{ID: "t1", CreatedBy: "owner", Status: domain.TicketStatusOpen}

	d := v.Authorize(context.Background(), domain.Principal{ID: "intruder", Role: domain.RoleUser}, ticket, domain.ActionRead, t0)
	if d.Allowed() || d.Reason != DenyNotOwner {
		t.Fatalf("expected Deny(NotOwner), got %+v", d)
	}
	if rec.count() != 1 {
		t.Fatalf("expected exactly one audit event, got %d", rec.count())
	}
	e := rec.events[0]
	if e.PrincipalID != "intruder" || e.TicketID != "t1" || e.Action != "read" || e.Outcome != audit.OutcomeDenied || e.Reason != string(DenyNotOwner) {
		t.Fatalf("unexpected audit event %+v", e)
	}
	if !e.OccurredAt.Equal(t0) {
		t.Fatalf("audit timestamp must come from the reference clock: %v", e.OccurredAt)
	}
	var denied *DeniedError
	if !errors.As(d.Err(), &denied) || denied.Reason != DenyNotOwner {
		t.Fatalf("Err() = %v", d.Err())
	}
}

func TestAuthorizeCarriesRequestID(t *testing.T) {
	rec := &recordingEmitter{}
	v := NewValidator(rec)
	ticket := &domain.Ticket{ID: "t1", CreatedBy: "owner", Status: domain.TicketStatusOpen}
	ctx := audit.WithRequestID(context.Background(), "req-1")

	v.Authorize(ctx, domain.Principal{ID: "intruder", Role: domain.RoleUser}, ticket, domain.ActionRead, t0)
	if rec.count() != 1 {
		t.Fatalf("expected one audit event, got %d", rec.count())
	}
	if got := rec.events[0].RequestID; got != "req-1" {
		t.Fatalf("expected request id req-1, got %q", got)
	}
}

func TestAuthorizeOwnerExpiredIsDistinct(t *testing.T) {
	rec := &recordingEmitter{}
	v := NewValidator(rec)
	closedAt := t0
	ticket := closedTicket("u1", closedAt)
	owner := domain.Principal{ID: "u1", Role: domain.RoleUser}

	early := closedAt.Add(6*24*time.Hour + 23*time.Hour + 59*time.Minute + 59*time.Second)
	if d := v.Authorize(context.Background(), owner, ticket, domain.ActionRead, early); !d.Allowed() {
		t.Fatalf("owner must read inside window, got %+v", d)
	}
	if rec.count() != 0 {
		t.Fatalf("allow must not audit")
	}

	late := closedAt.Add(7*24*time.Hour + time.Second)
	d := v.Authorize(context.Background(), owner, ticket, domain.ActionRead, late)
	if d.Allowed() || d.Reason != DenyExpired {
		t.Fatalf("expected Deny(Expired), got %+v", d)
	}
	if d.Reason == DenyNotOwner {
		t.Fatalf("expired must differ from not owner")
	}
	if rec.count() != 1 || rec.events[0].Reason != string(DenyExpired) {
		t.Fatalf("expected one expired audit event, got %+v", rec.events)
	}
}

func TestAuthorizeMatrix(t *testing.T) {
	a1 := "a1"
	assigned := &domain.Ticket{ID: "t", CreatedBy: "u1", Status: domain.TicketStatusInProgress, AssignedTo: &a1}
	unassigned := &domain.Ticket{ID: "t", CreatedBy: "u1", Status: domain.TicketStatusOpen}

	cases := []struct {
		name   string
		p      domain.Principal
		ticket *domain.Ticket
		action domain.Action
		allow  bool
		reason DenyReason
	}{
		{"admin mutates anything", domain.Principal{ID: "root", Role: domain.RoleAdmin}, assigned, domain.ActionClose, true, ""},
		{"admin assigns", domain.Principal{ID: "root", Role: domain.RoleAdmin}, unassigned, domain.ActionAssign, true, ""},
		{"agent reads foreign ticket", domain.Principal{ID: "a2", Role: domain.RoleAgent}, assigned, domain.ActionRead, true, ""},
		{"agent updates own", domain.Principal{ID: "a1", Role: domain.RoleAgent}, assigned, domain.ActionUpdate, true, ""},
		{"agent updates foreign", domain.Principal{ID: "a2", Role: domain.RoleAgent}, assigned, domain.ActionUpdate, false, DenyNotAssigned},
		{"agent claims unassigned", domain.Principal{ID: "a2", Role: domain.RoleAgent}, unassigned, domain.ActionClaim, true, ""},
		{"agent claims assigned", domain.Principal{ID: "a2", Role: domain.RoleAgent}, assigned, domain.ActionClaim, false, DenyNotAssigned},
		{"agent comments unassigned", domain.Principal{ID: "a2", Role: domain.RoleAgent}, unassigned, domain.ActionComment, false, DenyNotAssigned},
		{"owner comments", domain.Principal{ID: "u1", Role: domain.RoleUser}, assigned, domain.ActionComment, true, ""},
		{"owner closes", domain.Principal{ID: "u1", Role: domain.RoleUser}, assigned, domain.ActionClose, true, ""},
		{"owner claims", domain.Principal{ID: "u1", Role: domain.RoleUser}, unassigned, domain.ActionClaim, false, DenyNotAssigned},
		{"stranger updates", domain.Principal{ID: "u9", Role: domain.RoleUser}, assigned, domain.ActionUpdate, false, DenyNotOwner},
		{"guest reads", domain.Principal{ID: "g", Role: "guest"}, assigned, domain.ActionRead, false, DenyInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recordingEmitter{}
			d := NewValidator(rec).Authorize(context.Background(), tc.p, tc.ticket, tc.action, t0)
			if d.Allowed() != tc.allow || d.Reason != tc.reason {
				t.Fatalf("got %+v, want allow=%v reason=%q", d, tc.allow, tc.reason)
			}
			wantEvents := 0
			if !tc.allow {
				wantEvents = 1
			}
			if rec.count() != wantEvents {
				t.Fatalf("audit events = %d, want %d", rec.count(), wantEvents)
			}
		})
	}
}

func TestAuthorizeWithoutEmitter(t *testing.T) {
	v := NewValidator(nil)
	ticket := &domain.Ticket{ID: "t1", CreatedBy: "owner", Status: domain.TicketStatusOpen}
	d := v.Authorize(context.Background(), domain.Principal{ID: "x", Role: domain.RoleUser}, ticket, domain.ActionRead, t0)
	if d.Allowed() {
		t.Fatalf("decision must not depend on auditing")
	}
}

func TestAuthorizeWithFailingSinkStillDenies(t *testing.T) {
	sink := audit.SinkFunc(func(context.Context, audit.Event) error { return errors.New("sink down") })
	emitter := audit.NewEmitter(sink, audit.EmitterConfig{BufferSize: 1, Workers: 1}, nil, nil)
	defer emitter.Close(context.Background()) //nolint:errcheck

	v := NewValidator(emitter)
	ticket := &domain.Ticket{ID: "t1", CreatedBy: "owner", Status: domain.TicketStatusOpen}
	for i := 0; i < 10; i++ {
		d := v.Authorize(context.Background(), domain.Principal{ID: "x", Role: domain.RoleUser}, ticket, domain.ActionRead, t0)
		if d.Allowed() || d.Reason != DenyNotOwner {
			t.Fatalf("iteration %d: got %+v", i, d)
		}
	}
}

func TestAuthorizeConcurrentCallsAreIndependent(t *testing.T) {
	rec := &recordingEmitter{}
	v := NewValidator(rec)
	ticket := closedTicket("u1", t0)
	owner := domain.Principal{ID: "u1", Role: domain.RoleUser}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := t0.Add(time.Duration(i) * 24 * time.Hour / 4)
			d := v.Authorize(context.Background(), owner, ticket, domain.ActionRead, now)
			if d.Allowed() != WithinRetention(ticket, now) {
				t.Errorf("decision at %v disagrees with retention window", now)
			}
		}(i)
	}
	wg.Wait()
}

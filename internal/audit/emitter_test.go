package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/analyticket/helpdesk/internal/domain"
	"github.com/analyticket/helpdesk/internal/observability"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *memorySink) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memorySink) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

var at = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

func denial(ticketID string) Event {
	return NewDenial(domain.Principal{ID: "u1", Role: domain.RoleUser}, ticketID, "read", "not_owner", at)
}

func TestEmitterDeliversAndDrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	e := NewEmitter(sink, EmitterConfig{BufferSize: 16, Workers: 2}, nil, nil)

	ctx := WithRequestID(context.Background(), "req-7")
	for i := 0; i < 10; i++ {
		e.Emit(ctx, denial("t"))
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sink.len() != 10 {
		t.Fatalf("expected 10 recorded events, got %d", sink.len())
	}
	if sink.events[0].RequestID != "req-7" {
		t.Fatalf("request id not propagated: %+v", sink.events[0])
	}
	if !errors.Is(e.Close(context.Background()), ErrEmitterClosed) {
		t.Fatalf("second close must report ErrEmitterClosed")
	}
}

func TestEmitDoesNotBlockWhenSinkStalls(t *testing.T) {
	release := make(chan struct{})
	sink := SinkFunc(func(ctx context.Context, _ Event) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	metrics := observability.NewMetrics()
	e := NewEmitter(sink, EmitterConfig{BufferSize: 1, Workers: 1}, nil, metrics)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			e.Emit(context.Background(), denial("t"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a stalled sink")
	}
	close(release)
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if dropped := counterValue(t, metrics, "audit_events_dropped_total"); dropped < 18 {
		t.Fatalf("expected most events dropped, got %v", dropped)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	sink := &memorySink{}
	e := NewEmitter(sink, EmitterConfig{}, nil, nil)
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	e.Emit(context.Background(), denial("late"))
	if sink.len() != 0 {
		t.Fatalf("closed emitter must not record")
	}
}

func TestSinkFailureIsCountedNotReturned(t *testing.T) {
	metrics := observability.NewMetrics()
	sink := SinkFunc(func(context.Context, Event) error { return errors.New("db down") })
	e := NewEmitter(sink, EmitterConfig{BufferSize: 4, Workers: 1}, nil, metrics)
	e.Emit(context.Background(), denial("t"))
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := counterValue(t, metrics, "audit_sink_failures_total"); got != 1 {
		t.Fatalf("failures = %v", got)
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	ok := &memorySink{}
	failing := SinkFunc(func(context.Context, Event) error { return errors.New("nope") })
	err := MultiSink{failing, nil, ok}.Record(context.Background(), denial("t"))
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if ok.len() != 1 {
		t.Fatalf("healthy sink must still receive the event")
	}
}

func TestNewDenialShape(t *testing.T) {
	e := NewDenial(domain.Principal{ID: "a2", Role: domain.RoleAgent}, "t9", "update", "not_assigned", at.In(time.FixedZone("X", 3600)))
	if e.ID == "" || e.Outcome != OutcomeDenied || e.PrincipalRole != domain.RoleAgent {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.OccurredAt.Location() != time.UTC || !e.OccurredAt.Equal(at) {
		t.Fatalf("timestamp must be normalized to UTC: %v", e.OccurredAt)
	}
}

func counterValue(t *testing.T, m *observability.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/analyticket/helpdesk/internal/observability"
)

// ErrEmitterClosed is returned by Close when called twice.
var ErrEmitterClosed = errors.New("audit emitter closed")

// EmitterConfig sizes the emitter.
type EmitterConfig struct {
	BufferSize    int
	Workers       int
	RecordTimeout time.Duration
}

// Emitter queues audit events on a bounded channel drained by worker
// goroutines. Emit never blocks: a full queue drops the event.
type Emitter struct {
	sink    Sink
	logger  *zap.Logger
	metrics *observability.Metrics
	timeout time.Duration

	queue chan Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewEmitter starts cfg.Workers goroutines writing to sink.
func NewEmitter(sink Sink, cfg EmitterConfig, logger *zap.Logger, metrics *observability.Metrics) *Emitter {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		timeout: cfg.RecordTimeout,
		queue:   make(chan Event, cfg.BufferSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.run()
	}
	return e
}

// Emit enqueues event and returns immediately.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = RequestIDFromContext(ctx)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(event, "closed")
		return
	}
	select {
	case e.queue <- event:
	default:
		e.drop(event, "queue_full")
	}
}

func (e *Emitter) drop(event Event, why string) {
	e.metrics.RecordAuditDropped(why)
	e.logger.Warn("audit event dropped",
		zap.String("reason", why),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID))
}

func (e *Emitter) run() {
	defer e.wg.Done()
	for event := range e.queue {
		e.record(event)
	}
}

func (e *Emitter) record(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := e.sink.Record(ctx, event); err != nil {
		e.metrics.RecordAuditFailure()
		e.logger.Error("audit sink failed",
			zap.Error(err),
			zap.String("event_id", event.ID),
			zap.String("principal_id", event.PrincipalID),
			zap.String("ticket_id", event.TicketID))
		return
	}
	e.metrics.RecordAuditRecorded()
}

// Close stops accepting events and waits for queued ones to be written or
// for ctx to expire.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEmitterClosed
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

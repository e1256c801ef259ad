package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/analyticket/helpdesk/internal/service"
)

// ErrQueueFull is returned when a notification cannot be queued.
var ErrQueueFull = errors.New("notification queue full")

// NotificationWorker moves notification delivery off the request path. It
// implements service.Notifier and forwards to the wrapped notifier from a
// single goroutine.
type NotificationWorker struct {
	next    service.Notifier
	queue   chan service.Notification
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewNotificationWorker builds a worker with the given queue size.
func NewNotificationWorker(next service.Notifier, buffer int, logger *zap.Logger) *NotificationWorker {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		next:    next,
		queue:   make(chan service.Notification, buffer),
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Start launches the delivery loop.
func (w *NotificationWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for n := range w.queue {
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			if err := w.next.Notify(ctx, n); err != nil {
				w.logger.Error("notification delivery failed",
					zap.String("channel", n.Channel),
					zap.String("ticket_id", n.TicketID),
					zap.Error(err))
			}
			cancel()
		}
	}()
}

// Notify queues n without blocking.
func (w *NotificationWorker) Notify(_ context.Context, n service.Notification) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrQueueFull
	}
	select {
	case w.queue <- n:
		return nil
	default:
		w.logger.Warn("notification dropped", zap.String("ticket_id", n.TicketID))
		return ErrQueueFull
	}
}

// Stop drains queued notifications and waits for the loop to exit.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to the structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a logging sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record logs the event at info level.
func (s *LogSink) Record(_ context.Context, event Event) error {
	s.logger.Info("access denied",
		zap.String("type", "audit"),
		zap.String("event_id", event.ID),
		zap.String("principal_id", event.PrincipalID),
		zap.String("principal_role", string(event.PrincipalRole)),
		zap.String("ticket_id", event.TicketID),
		zap.String("action", event.Action),
		zap.String("reason", event.Reason),
		zap.String("request_id", event.RequestID),
		zap.Time("occurred_at", event.OccurredAt))
	return nil
}

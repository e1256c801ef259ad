package audit

import (
	"context"
	"errors"
)

// Sink persists audit events. It only receives; it never answers queries.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, event Event) error { return f(ctx, event) }

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

// Record writes to all sinks even when one fails.
func (m MultiSink) Record(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

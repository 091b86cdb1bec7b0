package observability

import (
	"log/slog"

	"circnexus/core/events"
	"circnexus/core/types"
)

// wireEvent is satisfied by the typed engine events that carry a full
// attribute payload alongside their type.
type wireEvent interface {
	Event() *types.Event
}

// EventSink is the daemon's events.Emitter. Every engine event is written to
// the structured log for off-chain reconciliation and counted in the
// per-event-type Prometheus metric.
type EventSink struct {
	logger  *slog.Logger
	metrics *engineMetrics
}

// NewEventSink builds a sink logging through the supplied logger.
func NewEventSink(logger *slog.Logger) *EventSink {
	return &EventSink{logger: logger, metrics: EngineMetrics()}
}

// Emit implements the events.Emitter interface.
func (s *EventSink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	s.metrics.RecordEvent(evt.EventType())
	if s.logger == nil {
		return
	}
	attrs := []any{slog.String("type", evt.EventType())}
	if wire, ok := evt.(wireEvent); ok {
		if payload := wire.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	s.logger.Info("engine event", attrs...)
}

package preview

import (
	"context"
	"log/slog"

	"github.com/dukex/flowport/pkg/eventbus"
	"github.com/dukex/flowport/pkg/events"
)

// EventSink logs signals and publishes close signals as preview.closed events.
// A nil publisher only logs.
type EventSink struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewEventSink(publisher eventbus.EventPublisher, logger *slog.Logger) *EventSink {
	return &EventSink{publisher: publisher, logger: logger}
}

func (s *EventSink) Emit(ctx context.Context, event SignalEvent) error {
	s.logger.InfoContext(ctx, "Preview signal",
		"signal", event.Signal,
		"session_id", event.SessionID,
		"workflow_id", event.WorkflowID,
		"execution_id", event.ExecutionID,
	)

	if s.publisher == nil || event.Signal != SignalClose {
		return nil
	}

	return s.publisher.Publish(ctx, event.SessionID, events.PreviewClosed{
		BaseEvent:   events.NewBaseEvent(events.PreviewClosedEvent, event.WorkflowID),
		SessionID:   event.SessionID,
		ExecutionID: event.ExecutionID,
	})
}

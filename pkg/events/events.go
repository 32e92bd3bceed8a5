// Package events defines the notifications published by the import pipeline and the preview host.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "flowport.events"

// PoisonTopic receives events whose handler kept failing.
const PoisonTopic = "flowport.events.poison"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowImportedEvent EventType = "workflow.imported"
	PreviewClosedEvent    EventType = "preview.closed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// WorkflowImported is published once per workflow after an import batch commits.
type WorkflowImported struct {
	BaseEvent

	Name        string `json:"name"`
	UserID      string `json:"user_id"`
	Deactivated bool   `json:"deactivated"`
}

func (w WorkflowImported) GetType() EventType {
	return WorkflowImportedEvent
}

// PreviewClosed is published when an editor preview asks its host to close.
type PreviewClosed struct {
	BaseEvent

	SessionID   string `json:"session_id"`
	ExecutionID string `json:"execution_id,omitempty"`
}

func (p PreviewClosed) GetType() EventType {
	return PreviewClosedEvent
}

var ErrUnknownEventType = errors.New("unknown event type")

var decoders = map[EventType]func() any{
	WorkflowImportedEvent: func() any { return &WorkflowImported{} },
	PreviewClosedEvent:    func() any { return &PreviewClosed{} },
}

// Decode unmarshals payload into a pointer to the event struct registered for eventType.
func Decode(eventType EventType, payload []byte) (any, error) {
	newEvent, ok := decoders[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	event := newEvent()

	err := json.Unmarshal(payload, event)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}

	return event, nil
}

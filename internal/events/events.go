package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the task service and the execution scheduler.
const (
	TypeTaskCreated            = "task.created"
	TypeTaskForked             = "task.forked"
	TypeTaskUpdated            = "task.updated"
	TypeTaskDeleted            = "task.deleted"
	TypeTaskExecutionScheduled = "task.execution_scheduled"
	TypeTaskCompleted          = "task.completed"
)

// Event is a notification that something happened to a task.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// TaskID is the task the event is about
	TaskID uuid.UUID `json:"task_id"`

	// Payload carries type-specific details serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event of eventType about taskID. A nil payload is omitted.
func NewEvent(eventType string, taskID uuid.UUID, payload any) (*Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		TaskID:    taskID,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler processes emitted events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter publishes events to every registered handler.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *Event) error
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NoopEmitter) EmitEvent(context.Context, *Event) error { return nil }

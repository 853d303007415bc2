package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
)

// ProgressEvent reports a state or progress change of a generation task.
type ProgressEvent struct {
	TaskID     uuid.UUID         `json:"task_id"`
	State      domain.TaskState  `json:"state"`
	Progress   int               `json:"progress"`
	Message    string            `json:"message"`
	Attempt    int               `json:"attempt"`
	ErrorClass domain.ErrorClass `json:"error_class,omitempty"`
	DocumentID *uuid.UUID        `json:"document_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewProgressEvent builds an event from a task snapshot.
func NewProgressEvent(s domain.TaskSnapshot) ProgressEvent {
	return ProgressEvent{
		TaskID:     s.TaskID,
		State:      s.State,
		Progress:   s.Progress,
		Message:    s.StatusMessage,
		Attempt:    s.Attempts,
		ErrorClass: s.ErrorClass,
		DocumentID: s.DocumentID,
		Timestamp:  s.UpdatedAt,
	}
}

// Terminal reports whether the event ends the task's stream.
func (e ProgressEvent) Terminal() bool {
	return domain.TaskLifecycle.IsTerminal(e.State)
}

// Sink receives progress events. Implementations must not block the caller
// for longer than a local buffer operation.
type Sink interface {
	Publish(ctx context.Context, event ProgressEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event ProgressEvent) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, event ProgressEvent) error {
	return f(ctx, event)
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(context.Context, ProgressEvent) error { return nil })

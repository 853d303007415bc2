package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskState represents where a generation task is in its execution
type TaskState string

// Possible task states
const (
	TaskStatePending    TaskState = "pending"
	TaskStateProcessing TaskState = "processing"
	TaskStateRetrying   TaskState = "retrying"
	TaskStateSuccess    TaskState = "success"
	TaskStateFailure    TaskState = "failure"
	TaskStateCancelled  TaskState = "cancelled"
)

// TaskLifecycle governs generation task states. Success, failure and
// cancelled are terminal.
var TaskLifecycle = NewStatusMachine("generation task", TaskStatePending, map[TaskState][]TaskState{
	TaskStatePending:    {TaskStateProcessing, TaskStateCancelled, TaskStateFailure},
	TaskStateProcessing: {TaskStateRetrying, TaskStateSuccess, TaskStateFailure, TaskStateCancelled},
	TaskStateRetrying:   {TaskStateProcessing, TaskStateFailure, TaskStateCancelled},
	TaskStateSuccess:    {},
	TaskStateFailure:    {},
	TaskStateCancelled:  {},
})

// ErrorClass classifies why a task ended in failure or cancellation.
type ErrorClass string

// Error classes reported on terminal tasks
const (
	ErrorClassNone           ErrorClass = ""
	ErrorClassValidation     ErrorClass = "validation"
	ErrorClassNotFound       ErrorClass = "not_found"
	ErrorClassPermission     ErrorClass = "permission"
	ErrorClassFatal          ErrorClass = "fatal"
	ErrorClassRetryable      ErrorClass = "retryable"
	ErrorClassRetryExhausted ErrorClass = "retry_exhausted"
	ErrorClassCancelled      ErrorClass = "cancelled"
	ErrorClassInternal       ErrorClass = "internal"
)

// GenerationTask is one request to produce a document from a template and
// a form submission. Only the orchestrator mutates it.
type GenerationTask struct {
	ID              uuid.UUID      `json:"id"`
	TemplateID      uuid.UUID      `json:"template_id"`
	TemplateVersion int            `json:"template_version"`
	RequesterID     string         `json:"requester_id"`
	FormData        map[string]any `json:"form_data"`
	State           TaskState      `json:"state"`
	Progress        int            `json:"progress"`
	StatusMessage   string         `json:"status_message"`
	Attempts        int            `json:"attempts"`
	ErrorClass      ErrorClass     `json:"error_class,omitempty"`
	ClientID        *uuid.UUID     `json:"client_id,omitempty"`
	DocumentID      *uuid.UUID     `json:"document_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
}

// NewGenerationTask creates a pending task holding a snapshot of the form.
func NewGenerationTask(tpl *Template, requesterID string, form map[string]any) *GenerationTask {
	snapshot := make(map[string]any, len(form))
	for k, v := range form {
		snapshot[k] = v
	}
	now := time.Now().UTC()
	return &GenerationTask{
		ID:              uuid.New(),
		TemplateID:      tpl.ID,
		TemplateVersion: tpl.Version,
		RequesterID:     requesterID,
		FormData:        snapshot,
		State:           TaskLifecycle.Initial(),
		StatusMessage:   "queued",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CurrentStatus implements Stateful.
func (t *GenerationTask) CurrentStatus() TaskState { return t.State }

// SetStatus implements Stateful.
func (t *GenerationTask) SetStatus(state TaskState) {
	t.State = state
}

// Touch stamps UpdatedAt with now, and FinishedAt the first time the task is
// seen in a terminal state.
func (t *GenerationTask) Touch(now time.Time) {
	t.UpdatedAt = now
	if t.FinishedAt == nil && t.IsTerminal() {
		finished := now
		t.FinishedAt = &finished
	}
}

// IsTerminal reports whether the task has finished.
func (t *GenerationTask) IsTerminal() bool {
	return TaskLifecycle.IsTerminal(t.State)
}

// Snapshot copies the externally visible task fields.
func (t *GenerationTask) Snapshot() TaskSnapshot {
	return TaskSnapshot{
		TaskID:        t.ID,
		TemplateID:    t.TemplateID,
		State:         t.State,
		Progress:      t.Progress,
		StatusMessage: t.StatusMessage,
		Attempts:      t.Attempts,
		ErrorClass:    t.ErrorClass,
		ClientID:      t.ClientID,
		DocumentID:    t.DocumentID,
		UpdatedAt:     t.UpdatedAt,
		FinishedAt:    t.FinishedAt,
	}
}

// TaskSnapshot is the read model returned by status queries.
type TaskSnapshot struct {
	TaskID        uuid.UUID  `json:"task_id"`
	TemplateID    uuid.UUID  `json:"template_id"`
	State         TaskState  `json:"state"`
	Progress      int        `json:"progress"`
	StatusMessage string     `json:"status_message"`
	Attempts      int        `json:"attempts"`
	ErrorClass    ErrorClass `json:"error_class,omitempty"`
	ClientID      *uuid.UUID `json:"client_id,omitempty"`
	DocumentID    *uuid.UUID `json:"document_id,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

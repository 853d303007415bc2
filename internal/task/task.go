package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
)

// Job is a unit of background work executed by a worker.
type Job interface {
	// ID returns the identifier of the task the job executes.
	ID() uuid.UUID

	// Execute runs the job. The context is cancelled when the runner stops.
	Execute(ctx context.Context) error
}

// JobQueueReader provides read-only access to the job channel
// allowing workers to consume jobs without the ability to enqueue
type JobQueueReader interface {
	// GetChannel returns a read-only channel for consuming jobs
	GetChannel() <-chan Job
}

// JobQueueWriter provides write access to the job queue
type JobQueueWriter interface {
	// Enqueue adds a job to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(job Job) error

	// Close closes the queue, preventing further submission
	Close()
}

// TaskStore defines the interface for persisting generation tasks.
type TaskStore interface {
	// Create persists a new task.
	Create(ctx context.Context, task *domain.GenerationTask) error

	// GetByID retrieves a task by id.
	// Returns store.ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error)

	// Update saves the task's mutable fields.
	Update(ctx context.Context, task *domain.GenerationTask) error

	// ListByState retrieves tasks in state. If olderThan is non-zero, only
	// tasks not updated for longer than olderThan are returned.
	ListByState(ctx context.Context, state domain.TaskState, olderThan time.Duration) ([]*domain.GenerationTask, error)
}

// JobFactory rebuilds the job for a persisted task during recovery. It
// returns false when the task must not be queued, for example because it is
// already running in this process.
type JobFactory func(ctx context.Context, task *domain.GenerationTask) (Job, bool)

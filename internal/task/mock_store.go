package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/platform/memory"
)

// MockTaskStore implements the TaskStore interface for testing. Calls go to
// an in-memory store unless the matching function field is set.
type MockTaskStore struct {
	*memory.TaskStore

	CreateFn      func(ctx context.Context, task *domain.GenerationTask) error
	UpdateFn      func(ctx context.Context, task *domain.GenerationTask) error
	ListByStateFn func(ctx context.Context, state domain.TaskState, olderThan time.Duration) ([]*domain.GenerationTask, error)

	mu      sync.Mutex
	updates map[uuid.UUID][]domain.TaskState
}

var _ TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		TaskStore: memory.NewTaskStore(),
		updates:   make(map[uuid.UUID][]domain.TaskState),
	}
}

// Create persists a task in the mock store
func (s *MockTaskStore) Create(ctx context.Context, task *domain.GenerationTask) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, task)
	}
	return s.TaskStore.Create(ctx, task)
}

// Update records the state written and saves the task
func (s *MockTaskStore) Update(ctx context.Context, task *domain.GenerationTask) error {
	s.mu.Lock()
	states := s.updates[task.ID]
	if len(states) == 0 || states[len(states)-1] != task.State {
		s.updates[task.ID] = append(states, task.State)
	}
	s.mu.Unlock()

	if s.UpdateFn != nil {
		return s.UpdateFn(ctx, task)
	}
	return s.TaskStore.Update(ctx, task)
}

// ListByState lists tasks from the mock store
func (s *MockTaskStore) ListByState(
	ctx context.Context,
	state domain.TaskState,
	olderThan time.Duration,
) ([]*domain.GenerationTask, error) {
	if s.ListByStateFn != nil {
		return s.ListByStateFn(ctx, state, olderThan)
	}
	return s.TaskStore.ListByState(ctx, state, olderThan)
}

// StateHistory returns the distinct consecutive states persisted for a task
func (s *MockTaskStore) StateHistory(id uuid.UUID) []domain.TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TaskState(nil), s.updates[id]...)
}

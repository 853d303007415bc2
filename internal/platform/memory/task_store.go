package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
)

// TaskStore is an in-memory task.TaskStore.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.GenerationTask
	now   func() time.Time
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[uuid.UUID]*domain.GenerationTask),
		now:   time.Now,
	}
}

// Create saves a new task.
func (s *TaskStore) Create(_ context.Context, t *domain.GenerationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return store.ErrDuplicate
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

// GetByID returns a task or store.ErrTaskNotFound.
func (s *TaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

// Update replaces a stored task.
func (s *TaskStore) Update(_ context.Context, t *domain.GenerationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return store.ErrTaskNotFound
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

// ListByState returns tasks in state whose last update is older than
// olderThan (zero means any age), oldest first.
func (s *TaskStore) ListByState(_ context.Context, state domain.TaskState, olderThan time.Duration) ([]*domain.GenerationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-olderThan)
	var out []*domain.GenerationTask
	for _, t := range s.tasks {
		if t.State != state {
			continue
		}
		if olderThan > 0 && t.UpdatedAt.After(cutoff) {
			continue
		}
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

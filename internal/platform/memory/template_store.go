package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
)

// TemplateStore is an in-memory store.TemplateStore.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]*domain.Template
}

var _ store.TemplateStore = (*TemplateStore)(nil)

// NewTemplateStore creates an empty TemplateStore.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[uuid.UUID]*domain.Template)}
}

// Create implements store.TemplateStore.
func (s *TemplateStore) Create(_ context.Context, tpl *domain.Template) error {
	if err := tpl.Validate(); err != nil {
		return store.NewStoreError("template", "create", "validation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[tpl.ID]; ok {
		return store.ErrDuplicate
	}
	s.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

// GetByID implements store.TemplateStore.
func (s *TemplateStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[id]
	if !ok {
		return nil, store.ErrTemplateNotFound
	}
	return cloneTemplate(tpl), nil
}

// Update implements store.TemplateStore.
func (s *TemplateStore) Update(_ context.Context, tpl *domain.Template) error {
	if err := tpl.Validate(); err != nil {
		return store.NewStoreError("template", "update", "validation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[tpl.ID]; !ok {
		return store.ErrTemplateNotFound
	}
	s.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

// Modify implements store.TemplateStore.
func (s *TemplateStore) Modify(
	_ context.Context,
	id uuid.UUID,
	fn func(tpl *domain.Template) error,
) (*domain.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.templates[id]
	if !ok {
		return nil, store.ErrTemplateNotFound
	}
	tpl := cloneTemplate(current)
	if err := fn(tpl); err != nil {
		return nil, err
	}
	if err := tpl.Validate(); err != nil {
		return nil, store.NewStoreError("template", "modify", "validation", err)
	}
	s.templates[id] = cloneTemplate(tpl)
	return tpl, nil
}

// List implements store.TemplateStore.
func (s *TemplateStore) List(_ context.Context, status domain.TemplateStatus) ([]*domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		if status == "" || tpl.Status == status {
			out = append(out, cloneTemplate(tpl))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

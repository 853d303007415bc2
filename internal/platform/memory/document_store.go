package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
)

// DocumentStore is an in-memory store.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*domain.Document
}

var _ store.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{documents: make(map[uuid.UUID]*domain.Document)}
}

// Create implements store.DocumentStore.
func (s *DocumentStore) Create(_ context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return store.NewStoreError("document", "create", "validation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return store.ErrDuplicate
	}
	s.documents[doc.ID] = cloneDocument(doc)
	return nil
}

// GetByID implements store.DocumentStore.
func (s *DocumentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	return cloneDocument(doc), nil
}

// UpdateStatus implements store.DocumentStore.
func (s *DocumentStore) UpdateStatus(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.documents[doc.ID]
	if !ok {
		return store.ErrDocumentNotFound
	}
	stored.Status = doc.Status
	stored.UpdatedAt = doc.UpdatedAt
	return nil
}

// ListByTemplate implements store.DocumentStore.
func (s *DocumentStore) ListByTemplate(_ context.Context, templateID uuid.UUID) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Document
	for _, doc := range s.documents {
		if doc.TemplateID == templateID {
			out = append(out, cloneDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return out, nil
}

package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
)

// ClientStore is an in-memory store.ClientStore. A map from normalized
// identifier to client id plays the role of the unique index.
type ClientStore struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]*domain.Client
	byIdentity map[string]uuid.UUID
}

var _ store.ClientStore = (*ClientStore)(nil)

// NewClientStore creates an empty ClientStore.
func NewClientStore() *ClientStore {
	return &ClientStore{
		clients:    make(map[uuid.UUID]*domain.Client),
		byIdentity: make(map[string]uuid.UUID),
	}
}

// GetByID implements store.ClientStore.
func (s *ClientStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, store.ErrClientNotFound
	}
	return cloneClient(c), nil
}

// FindByNationalID implements store.ClientStore.
func (s *ClientStore) FindByNationalID(_ context.Context, nationalID string) (*domain.Client, error) {
	return s.find(func(c *domain.Client) bool { return c.NationalID == nationalID })
}

// FindByEmail implements store.ClientStore.
func (s *ClientStore) FindByEmail(_ context.Context, email string) (*domain.Client, error) {
	return s.find(func(c *domain.Client) bool { return c.Email == email })
}

func (s *ClientStore) find(match func(*domain.Client) bool) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.Client
	for _, c := range s.clients {
		if c.ArchivedAt != nil || !match(c) {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, store.ErrClientNotFound
	}
	return cloneClient(found), nil
}

// FindOrCreate implements store.ClientStore.
func (s *ClientStore) FindOrCreate(_ context.Context, client *domain.Client) (*domain.Client, bool, error) {
	if err := client.Validate(); err != nil {
		return nil, false, store.NewStoreError("client", "create", "validation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := client.NormalizedIdentifier()
	if id, ok := s.byIdentity[key]; ok {
		return cloneClient(s.clients[id]), false, nil
	}
	s.clients[client.ID] = cloneClient(client)
	s.byIdentity[key] = client.ID
	return cloneClient(client), true, nil
}

// Update implements store.ClientStore. Changing the normalized identifier
// to one owned by another active client fails with store.ErrClientExists.
func (s *ClientStore) Update(_ context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return store.NewStoreError("client", "update", "validation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.clients[client.ID]
	if !ok {
		return store.ErrClientNotFound
	}
	oldKey, newKey := old.NormalizedIdentifier(), client.NormalizedIdentifier()
	if oldKey != newKey {
		if owner, taken := s.byIdentity[newKey]; taken && owner != client.ID {
			return store.ErrClientExists
		}
		delete(s.byIdentity, oldKey)
	}
	if client.ArchivedAt == nil {
		s.byIdentity[newKey] = client.ID
	} else {
		delete(s.byIdentity, newKey)
	}
	s.clients[client.ID] = cloneClient(client)
	return nil
}

// Count returns the number of stored clients, archived included.
func (s *ClientStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

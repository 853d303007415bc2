package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
)

// ClientStore defines the interface for client persistence. Implementations
// guarantee at most one non-archived client per normalized identifier.
type ClientStore interface {
	// GetByID retrieves a client by id.
	// Returns ErrClientNotFound if the client does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error)

	// FindByNationalID returns the active client holding the national id.
	// Returns ErrClientNotFound when none does.
	FindByNationalID(ctx context.Context, nationalID string) (*domain.Client, error)

	// FindByEmail returns the active client with the email.
	// Returns ErrClientNotFound when none does.
	FindByEmail(ctx context.Context, email string) (*domain.Client, error)

	// FindOrCreate atomically inserts client unless an active client with the
	// same normalized identifier exists, in which case that one is returned.
	// The boolean reports whether client was inserted.
	FindOrCreate(ctx context.Context, client *domain.Client) (*domain.Client, bool, error)

	// Update saves a client's mutable fields.
	// Returns ErrClientNotFound if the client does not exist.
	Update(ctx context.Context, client *domain.Client) error
}

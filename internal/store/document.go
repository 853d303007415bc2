package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
)

// DocumentStore defines the interface for generated document persistence.
type DocumentStore interface {
	// Create saves a new document.
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document.
	// Returns ErrDocumentNotFound if the document does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// UpdateStatus persists a status change made through DocumentLifecycle.
	// Returns ErrDocumentNotFound if the document does not exist.
	UpdateStatus(ctx context.Context, doc *domain.Document) error

	// ListByTemplate returns the documents generated from a template, newest first.
	ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]*domain.Document, error)
}

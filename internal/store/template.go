package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
)

// TemplateStore defines the interface for template persistence. Placeholders
// are stored with their template; removed placeholders are kept.
type TemplateStore interface {
	// Create saves a new template.
	Create(ctx context.Context, tpl *domain.Template) error

	// GetByID retrieves a template with all its placeholders.
	// Returns ErrTemplateNotFound if the template does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error)

	// Update saves status, version and the full placeholder set.
	// Returns ErrTemplateNotFound if the template does not exist.
	Update(ctx context.Context, tpl *domain.Template) error

	// Modify loads the template, applies fn and saves the result as one
	// atomic step, so concurrent syncs and transitions cannot lose writes.
	// An error from fn aborts the change and is returned unchanged.
	// Returns ErrTemplateNotFound if the template does not exist.
	Modify(ctx context.Context, id uuid.UUID, fn func(tpl *domain.Template) error) (*domain.Template, error)

	// List returns templates, optionally filtered by status ("" for all).
	List(ctx context.Context, status domain.TemplateStatus) ([]*domain.Template, error)
}

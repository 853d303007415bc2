package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
)

// DocumentService manages generated documents.
type DocumentService interface {
	// Get retrieves a document.
	Get(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// ListByTemplate returns the documents generated from a template.
	ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]*domain.Document, error)

	// Transition moves the document through its lifecycle. Deprecated
	// documents cannot change.
	Transition(ctx context.Context, id uuid.UUID, to domain.DocumentStatus) (*domain.Document, error)
}

type documentServiceImpl struct {
	documents store.DocumentStore
	logger    *slog.Logger
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(documents store.DocumentStore, logger *slog.Logger) (DocumentService, error) {
	if documents == nil {
		return nil, &ServiceError{
			Service:   "document",
			Operation: "create_service",
			Message:   "documents cannot be nil",
			Err:       ErrMissingDependency,
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &documentServiceImpl{
		documents: documents,
		logger:    logger.With("component", "document_service"),
	}, nil
}

// Get implements DocumentService.
func (s *documentServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("document", "get", "failed to load document", err)
	}
	return doc, nil
}

// ListByTemplate implements DocumentService.
func (s *documentServiceImpl) ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]*domain.Document, error) {
	docs, err := s.documents.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, NewServiceError("document", "list", "failed to list documents", err)
	}
	return docs, nil
}

// Transition implements DocumentService.
func (s *documentServiceImpl) Transition(
	ctx context.Context,
	id uuid.UUID,
	to domain.DocumentStatus,
) (*domain.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("document", "transition", "failed to load document", err)
	}

	from := doc.Status
	if err := domain.DocumentLifecycle.Apply(doc, to); err != nil {
		return nil, err
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.documents.UpdateStatus(ctx, doc); err != nil {
		s.logger.ErrorContext(ctx, "failed to save document status",
			"document_id", id,
			"status", to,
			"error", err)
		return nil, NewServiceError("document", "transition", "failed to save document status", err)
	}

	s.logger.InfoContext(ctx, "document status changed",
		"document_id", id,
		"from", from,
		"to", to)
	return doc, nil
}

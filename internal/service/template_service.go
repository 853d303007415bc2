package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/placeholder"
	"github.com/phrazzld/docgen/internal/store"
)

// SourceFetcher reads the text of a template source document.
// authoring.Client satisfies it.
type SourceFetcher interface {
	FetchSource(ctx context.Context, sourceRef string) (string, error)
}

// SyncResult is the outcome of re-reading a template's source.
type SyncResult struct {
	Template *domain.Template
	Diff     placeholder.Diff
}

// TemplateService manages templates and their placeholders.
type TemplateService interface {
	// Create registers a draft template and extracts its placeholders from
	// the source document.
	Create(ctx context.Context, name, sourceRef string) (*domain.Template, error)

	// Get retrieves a template.
	Get(ctx context.Context, id uuid.UUID) (*domain.Template, error)

	// List returns templates, optionally filtered by status.
	List(ctx context.Context, status domain.TemplateStatus) ([]*domain.Template, error)

	// Sync re-extracts placeholders from the source document. Removed keys
	// are kept with a removal time and the version is bumped when the active
	// set changed.
	Sync(ctx context.Context, id uuid.UUID) (*SyncResult, error)

	// Transition moves the template through its lifecycle.
	Transition(ctx context.Context, id uuid.UUID, to domain.TemplateStatus) (*domain.Template, error)
}

type templateServiceImpl struct {
	templates store.TemplateStore
	registry  *placeholder.Registry
	source    SourceFetcher
	logger    *slog.Logger
}

// NewTemplateService creates a TemplateService.
// It returns an error if any of the required dependencies are nil.
func NewTemplateService(
	templates store.TemplateStore,
	registry *placeholder.Registry,
	source SourceFetcher,
	logger *slog.Logger,
) (TemplateService, error) {
	if templates == nil || registry == nil || source == nil {
		return nil, &ServiceError{
			Service:   "template",
			Operation: "create_service",
			Message:   "templates, registry and source are required",
			Err:       ErrMissingDependency,
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &templateServiceImpl{
		templates: templates,
		registry:  registry,
		source:    source,
		logger:    logger.With("component", "template_service"),
	}, nil
}

// Create implements TemplateService.
func (s *templateServiceImpl) Create(ctx context.Context, name, sourceRef string) (*domain.Template, error) {
	tpl, err := domain.NewTemplate(name, sourceRef)
	if err != nil {
		return nil, err
	}

	text, err := s.source.FetchSource(ctx, sourceRef)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch template source", "source_ref", sourceRef, "error", err)
		return nil, NewServiceError("template", "create", "failed to fetch template source", err)
	}
	placeholders, malformed := s.registry.Extract(text)
	tpl.Placeholders = placeholders

	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, NewServiceError("template", "create", "failed to save template", err)
	}

	s.logger.InfoContext(ctx, "template created",
		"template_id", tpl.ID,
		"placeholders", len(placeholders),
		"malformed", len(malformed))
	return tpl, nil
}

// Get implements TemplateService.
func (s *templateServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("template", "get", "failed to load template", err)
	}
	return tpl, nil
}

// List implements TemplateService.
func (s *templateServiceImpl) List(ctx context.Context, status domain.TemplateStatus) ([]*domain.Template, error) {
	if status != "" && !domain.TemplateLifecycle.IsKnown(status) {
		return nil, domain.ErrValidation
	}
	templates, err := s.templates.List(ctx, status)
	if err != nil {
		return nil, NewServiceError("template", "list", "failed to list templates", err)
	}
	return templates, nil
}

// Sync implements TemplateService. The source is fetched before the template
// row is locked.
func (s *templateServiceImpl) Sync(ctx context.Context, id uuid.UUID) (*SyncResult, error) {
	current, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("template", "sync", "failed to load template", err)
	}

	text, err := s.source.FetchSource(ctx, current.SourceRef)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch template source",
			"template_id", id,
			"source_ref", current.SourceRef,
			"error", err)
		return nil, NewServiceError("template", "sync", "failed to fetch template source", err)
	}

	var diff placeholder.Diff
	tpl, err := s.templates.Modify(ctx, id, func(tpl *domain.Template) error {
		var err error
		diff, err = s.registry.Sync(ctx, tpl, text)
		return err
	})
	if err != nil {
		return nil, NewServiceError("template", "sync", "failed to sync placeholders", err)
	}
	return &SyncResult{Template: tpl, Diff: diff}, nil
}

// Transition implements TemplateService.
func (s *templateServiceImpl) Transition(
	ctx context.Context,
	id uuid.UUID,
	to domain.TemplateStatus,
) (*domain.Template, error) {
	var from domain.TemplateStatus
	tpl, err := s.templates.Modify(ctx, id, func(tpl *domain.Template) error {
		from = tpl.Status
		if err := tpl.Transition(to); err != nil {
			return err
		}
		tpl.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, NewServiceError("template", "transition", "failed to transition template", err)
	}

	s.logger.InfoContext(ctx, "template status changed",
		"template_id", id,
		"from", from,
		"to", to)
	return tpl, nil
}

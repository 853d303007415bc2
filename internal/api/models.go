package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/service"
)

// Common request/response structures

// SubmitGenerationRequest defines the payload for starting a document
// generation. FormData keys are matched to placeholder keys after
// normalization.
type SubmitGenerationRequest struct {
	TemplateID uuid.UUID      `json:"template_id" validate:"required"`
	FormData   map[string]any `json:"form_data"   validate:"required"`
}

// SubmitGenerationResponse is returned once a generation task is accepted.
type SubmitGenerationResponse struct {
	TaskID    uuid.UUID `json:"task_id"`
	StatusURL string    `json:"status_url"`
	EventsURL string    `json:"events_url"`
}

// CreateTemplateRequest defines the payload for registering a template.
type CreateTemplateRequest struct {
	Name      string `json:"name"       validate:"required,max=255"`
	SourceRef string `json:"source_ref" validate:"required,max=1024"`
}

// TransitionRequest defines the payload for a lifecycle status change.
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// PlaceholderResponse describes one form field of a template.
type PlaceholderResponse struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Type      string     `json:"type"`
	Required  bool       `json:"required"`
	Order     int        `json:"order"`
	Options   []string   `json:"options,omitempty"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

// TemplateResponse is the API representation of a template.
type TemplateResponse struct {
	ID           uuid.UUID             `json:"id"`
	Name         string                `json:"name"`
	Status       string                `json:"status"`
	Version      int                   `json:"version"`
	SourceRef    string                `json:"source_ref"`
	Placeholders []PlaceholderResponse `json:"placeholders"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// SyncResponse reports the outcome of re-reading a template's source.
type SyncResponse struct {
	Template  TemplateResponse `json:"template"`
	Added     []string         `json:"added"`
	Removed   []string         `json:"removed"`
	Modified  []string         `json:"modified"`
	Unchanged []string         `json:"unchanged"`
	Malformed []string         `json:"malformed"`
	Changed   bool             `json:"changed"`
}

// DocumentResponse is the API representation of a generated document.
type DocumentResponse struct {
	ID              uuid.UUID  `json:"id"`
	TemplateID      uuid.UUID  `json:"template_id"`
	TemplateVersion int        `json:"template_version"`
	TaskID          uuid.UUID  `json:"task_id"`
	ClientID        *uuid.UUID `json:"client_id,omitempty"`
	Status          string     `json:"status"`
	ArtifactRef     string     `json:"artifact_ref"`
	GeneratedAt     time.Time  `json:"generated_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TaskStatusResponse is the API representation of a generation task.
type TaskStatusResponse struct {
	TaskID        uuid.UUID  `json:"task_id"`
	TemplateID    uuid.UUID  `json:"template_id"`
	State         string     `json:"state"`
	Progress      int        `json:"progress"`
	StatusMessage string     `json:"status_message"`
	Attempts      int        `json:"attempts"`
	ErrorClass    string     `json:"error_class,omitempty"`
	ClientID      *uuid.UUID `json:"client_id,omitempty"`
	DocumentID    *uuid.UUID `json:"document_id,omitempty"`
	Terminal      bool       `json:"terminal"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func templateToResponse(tpl *domain.Template) TemplateResponse {
	placeholders := make([]PlaceholderResponse, 0, len(tpl.Placeholders))
	for _, p := range tpl.Placeholders {
		placeholders = append(placeholders, PlaceholderResponse{
			Key:       p.Key,
			Label:     p.Label,
			Type:      string(p.Type),
			Required:  p.Required,
			Order:     p.Order,
			Options:   p.Options,
			RemovedAt: p.RemovedAt,
		})
	}
	return TemplateResponse{
		ID:           tpl.ID,
		Name:         tpl.Name,
		Status:       string(tpl.Status),
		Version:      tpl.Version,
		SourceRef:    tpl.SourceRef,
		Placeholders: placeholders,
		CreatedAt:    tpl.CreatedAt,
		UpdatedAt:    tpl.UpdatedAt,
	}
}

func syncToResponse(res *service.SyncResult) SyncResponse {
	return SyncResponse{
		Template:  templateToResponse(res.Template),
		Added:     nonNil(res.Diff.Added),
		Removed:   nonNil(res.Diff.Removed),
		Modified:  nonNil(res.Diff.Modified),
		Unchanged: nonNil(res.Diff.Unchanged),
		Malformed: nonNil(res.Diff.Malformed),
		Changed:   res.Diff.HasChanges(),
	}
}

func documentToResponse(doc *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:              doc.ID,
		TemplateID:      doc.TemplateID,
		TemplateVersion: doc.TemplateVersion,
		TaskID:          doc.TaskID,
		ClientID:        doc.ClientID,
		Status:          string(doc.Status),
		ArtifactRef:     doc.ArtifactRef,
		GeneratedAt:     doc.GeneratedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func snapshotToResponse(s domain.TaskSnapshot) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID:        s.TaskID,
		TemplateID:    s.TemplateID,
		State:         string(s.State),
		Progress:      s.Progress,
		StatusMessage: s.StatusMessage,
		Attempts:      s.Attempts,
		ErrorClass:    string(s.ErrorClass),
		ClientID:      s.ClientID,
		DocumentID:    s.DocumentID,
		Terminal:      domain.TaskLifecycle.IsTerminal(s.State),
		UpdatedAt:     s.UpdatedAt,
		FinishedAt:    s.FinishedAt,
	}
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}

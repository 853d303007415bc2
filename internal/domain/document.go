package domain

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// DocumentStatus represents the lifecycle state of a generated document
type DocumentStatus string

// Possible document status values
const (
	DocumentStatusDraft      DocumentStatus = "draft"
	DocumentStatusActive     DocumentStatus = "active"
	DocumentStatusArchived   DocumentStatus = "archived"
	DocumentStatusDeprecated DocumentStatus = "deprecated"
)

// DocumentLifecycle governs document status changes. Deprecated is terminal.
var DocumentLifecycle = NewStatusMachine("document", DocumentStatusDraft, map[DocumentStatus][]DocumentStatus{
	DocumentStatusDraft:      {DocumentStatusActive, DocumentStatusArchived},
	DocumentStatusActive:     {DocumentStatusArchived, DocumentStatusDeprecated},
	DocumentStatusArchived:   {DocumentStatusActive},
	DocumentStatusDeprecated: {},
})

// Document is the artifact produced by a successful generation task.
type Document struct {
	ID              uuid.UUID      `json:"id"`
	TemplateID      uuid.UUID      `json:"template_id"`
	TemplateVersion int            `json:"template_version"`
	TaskID          uuid.UUID      `json:"task_id"`
	ClientID        *uuid.UUID     `json:"client_id,omitempty"`
	Status          DocumentStatus `json:"status"`
	ArtifactRef     string         `json:"artifact_ref"`
	GeneratedAt     time.Time      `json:"generated_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewDocument creates a draft document for a finished task.
func NewDocument(task *GenerationTask, artifactRef string) (*Document, error) {
	now := time.Now().UTC()
	doc := &Document{
		ID:              uuid.New(),
		TemplateID:      task.TemplateID,
		TemplateVersion: task.TemplateVersion,
		TaskID:          task.ID,
		ClientID:        task.ClientID,
		Status:          DocumentLifecycle.Initial(),
		ArtifactRef:     artifactRef,
		GeneratedAt:     now,
		UpdatedAt:       now,
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks if the Document has valid data.
func (d *Document) Validate() error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.ID, requiredID),
		validation.Field(&d.TemplateID, requiredID),
		validation.Field(&d.TaskID, requiredID),
		validation.Field(&d.ArtifactRef, validation.Required),
		validation.Field(&d.TemplateVersion, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !DocumentLifecycle.IsKnown(d.Status) {
		return fmt.Errorf("%w: unknown document status %q", ErrValidation, d.Status)
	}
	return nil
}

// CurrentStatus implements Stateful.
func (d *Document) CurrentStatus() DocumentStatus { return d.Status }

// SetStatus implements Stateful.
func (d *Document) SetStatus(status DocumentStatus) {
	d.Status = status
}

package domain

import (
	"fmt"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// TemplateStatus represents the editorial state of a template
type TemplateStatus string

// Possible template status values
const (
	TemplateStatusDraft     TemplateStatus = "draft"
	TemplateStatusReviewing TemplateStatus = "reviewing"
	TemplateStatusPublished TemplateStatus = "published"
	TemplateStatusArchived  TemplateStatus = "archived"
)

// TemplateLifecycle governs template status changes. Archived templates can
// be reopened as drafts, so no state is terminal.
var TemplateLifecycle = NewStatusMachine("template", TemplateStatusDraft, map[TemplateStatus][]TemplateStatus{
	TemplateStatusDraft:     {TemplateStatusReviewing, TemplateStatusArchived},
	TemplateStatusReviewing: {TemplateStatusPublished, TemplateStatusDraft, TemplateStatusArchived},
	TemplateStatusPublished: {TemplateStatusArchived, TemplateStatusReviewing},
	TemplateStatusArchived:  {TemplateStatusDraft},
})

// Template is a reusable legal document whose source carries placeholder
// markers. Templates are archived, never deleted.
type Template struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Status       TemplateStatus `json:"status"`
	Version      int            `json:"version"`
	SourceRef    string         `json:"source_ref"`
	Placeholders []Placeholder  `json:"placeholders"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewTemplate creates a draft template at version 1 pointing at the given
// source document.
func NewTemplate(name, sourceRef string) (*Template, error) {
	now := time.Now().UTC()
	tpl := &Template{
		ID:        uuid.New(),
		Name:      name,
		Status:    TemplateLifecycle.Initial(),
		Version:   1,
		SourceRef: sourceRef,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	return tpl, nil
}

// Validate checks field-level rules and the published invariant.
func (t *Template) Validate() error {
	err := validation.ValidateStruct(t,
		validation.Field(&t.ID, requiredID),
		validation.Field(&t.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&t.SourceRef, validation.Required),
		validation.Field(&t.Version, validation.Required, validation.Min(1)),
		validation.Field(&t.Status, validation.By(func(any) error {
			if !TemplateLifecycle.IsKnown(t.Status) {
				return fmt.Errorf("unknown status %q", t.Status)
			}
			return nil
		})),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if t.Status == TemplateStatusPublished && len(t.ActivePlaceholders()) == 0 {
		return ErrNoPlaceholdersFound
	}
	return nil
}

// ActivePlaceholders returns the placeholders not marked as removed, ordered.
func (t *Template) ActivePlaceholders() []Placeholder {
	active := make([]Placeholder, 0, len(t.Placeholders))
	for _, p := range t.Placeholders {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Order < active[j].Order })
	return active
}

// Placeholder looks up an active placeholder by normalized key.
func (t *Template) Placeholder(key string) (Placeholder, bool) {
	for _, p := range t.Placeholders {
		if p.Key == key && p.IsActive() {
			return p, true
		}
	}
	return Placeholder{}, false
}

// CurrentStatus implements Stateful.
func (t *Template) CurrentStatus() TemplateStatus { return t.Status }

// SetStatus implements Stateful.
func (t *Template) SetStatus(status TemplateStatus) {
	t.Status = status
}

// Transition moves the template through its lifecycle. Publishing requires
// at least one active placeholder.
func (t *Template) Transition(to TemplateStatus) error {
	if to == TemplateStatusPublished && len(t.ActivePlaceholders()) == 0 {
		if err := TemplateLifecycle.Check(t.Status, to); err != nil {
			return err
		}
		return ErrNoPlaceholdersFound
	}
	return TemplateLifecycle.Apply(t, to)
}

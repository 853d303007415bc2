package memory

import (
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
)

func cloneTemplate(t *domain.Template) *domain.Template {
	c := *t
	c.Placeholders = make([]domain.Placeholder, len(t.Placeholders))
	for i, p := range t.Placeholders {
		p.Options = slices.Clone(p.Options)
		p.Markers = slices.Clone(p.Markers)
		if p.RemovedAt != nil {
			at := *p.RemovedAt
			p.RemovedAt = &at
		}
		c.Placeholders[i] = p
	}
	return &c
}

func cloneClient(c *domain.Client) *domain.Client {
	out := *c
	if c.ArchivedAt != nil {
		at := *c.ArchivedAt
		out.ArchivedAt = &at
	}
	return &out
}

func cloneDocument(d *domain.Document) *domain.Document {
	out := *d
	out.ClientID = cloneID(d.ClientID)
	return &out
}

func cloneTask(t *domain.GenerationTask) *domain.GenerationTask {
	out := *t
	out.FormData = maps.Clone(t.FormData)
	out.ClientID = cloneID(t.ClientID)
	out.DocumentID = cloneID(t.DocumentID)
	if t.FinishedAt != nil {
		at := *t.FinishedAt
		out.FinishedAt = &at
	}
	return &out
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

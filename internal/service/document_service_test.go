package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDocument(status domain.DocumentStatus) *domain.Document {
	return &domain.Document{
		ID:              uuid.New(),
		TemplateID:      uuid.New(),
		TemplateVersion: 1,
		TaskID:          uuid.New(),
		Status:          status,
		ArtifactRef:     "artifact-1",
	}
}

func TestNewDocumentService_RequiresStore(t *testing.T) {
	t.Parallel()
	_, err := NewDocumentService(nil, nil)
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestDocumentService_Transition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("saves allowed move", func(t *testing.T) {
		docs := new(MockDocumentStore)
		doc := newDocument(domain.DocumentStatusDraft)
		docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
		docs.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.ID == doc.ID && d.Status == domain.DocumentStatusActive
		})).Return(nil)

		svc, err := NewDocumentService(docs, nil)
		require.NoError(t, err)

		before := time.Now().UTC()
		got, err := svc.Transition(ctx, doc.ID, domain.DocumentStatusActive)
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusActive, got.Status)
		assert.False(t, got.UpdatedAt.Before(before), "saved move stamps UpdatedAt")
		docs.AssertExpectations(t)
	})

	t.Run("deprecated document is immutable", func(t *testing.T) {
		docs := new(MockDocumentStore)
		doc := newDocument(domain.DocumentStatusDeprecated)
		docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)

		svc, err := NewDocumentService(docs, nil)
		require.NoError(t, err)

		_, err = svc.Transition(ctx, doc.ID, domain.DocumentStatusActive)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		docs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	})

	t.Run("missing document", func(t *testing.T) {
		docs := new(MockDocumentStore)
		id := uuid.New()
		docs.On("GetByID", mock.Anything, id).Return(nil, store.ErrDocumentNotFound)

		svc, err := NewDocumentService(docs, nil)
		require.NoError(t, err)

		_, err = svc.Transition(ctx, id, domain.DocumentStatusArchived)
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
	})

	t.Run("unexpected store failure is wrapped", func(t *testing.T) {
		docs := new(MockDocumentStore)
		doc := newDocument(domain.DocumentStatusActive)
		boom := errors.New("connection reset")
		docs.On("GetByID", mock.Anything, doc.ID).Return(doc, nil)
		docs.On("UpdateStatus", mock.Anything, mock.Anything).Return(boom)

		svc, err := NewDocumentService(docs, nil)
		require.NoError(t, err)

		_, err = svc.Transition(ctx, doc.ID, domain.DocumentStatusArchived)
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "transition", svcErr.Operation)
		assert.ErrorIs(t, err, boom)
	})
}

func TestDocumentService_ListByTemplate(t *testing.T) {
	t.Parallel()
	docs := new(MockDocumentStore)
	templateID := uuid.New()
	want := []*domain.Document{newDocument(domain.DocumentStatusDraft)}
	docs.On("ListByTemplate", mock.Anything, templateID).Return(want, nil)

	svc, err := NewDocumentService(docs, nil)
	require.NoError(t, err)

	got, err := svc.ListByTemplate(context.Background(), templateID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewServiceError(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewServiceError("template", "get", "x", nil))
	assert.Same(t, store.ErrTemplateNotFound, NewServiceError("template", "get", "x", store.ErrTemplateNotFound))

	err := NewServiceError("template", "sync", "failed to fetch template source", errors.New("boom"))
	assert.Equal(t, "template service sync failed: failed to fetch template source: boom", err.Error())
}

package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
)

// PostgresDocumentStore implements store.DocumentStore.
type PostgresDocumentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDocumentStore creates a PostgresDocumentStore.
// If logger is nil, a default logger will be used.
func NewPostgresDocumentStore(db store.DBTX, logger *slog.Logger) *PostgresDocumentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDocumentStore{
		db:     db,
		logger: logger.With(slog.String("component", "document_store")),
	}
}

var _ store.DocumentStore = (*PostgresDocumentStore)(nil)

const documentColumns = `id, template_id, template_version, task_id, client_id, status, artifact_ref, generated_at, updated_at`

// Create implements store.DocumentStore.Create
func (s *PostgresDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID,
		doc.TemplateID,
		doc.TemplateVersion,
		doc.TaskID,
		nullUUID(doc.ClientID),
		doc.Status,
		doc.ArtifactRef,
		doc.GeneratedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to insert document", "document_id", doc.ID, "task_id", doc.TaskID, "error", err)
		return MapError(err)
	}
	return nil
}

// GetByID implements store.DocumentStore.GetByID
func (s *PostgresDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrDocumentNotFound)
	}
	return doc, nil
}

// UpdateStatus implements store.DocumentStore.UpdateStatus
func (s *PostgresDocumentStore) UpdateStatus(ctx context.Context, doc *domain.Document) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = $2, updated_at = $3 WHERE id = $1`,
		doc.ID, doc.Status, doc.UpdatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update document status", "document_id", doc.ID, "error", err)
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrDocumentNotFound)
}

// ListByTemplate implements store.DocumentStore.ListByTemplate
func (s *PostgresDocumentStore) ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE template_id = $1
		ORDER BY generated_at DESC`, templateID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list documents", "template_id", templateID, "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

func scanDocument(row scanner) (*domain.Document, error) {
	var (
		doc      domain.Document
		clientID uuid.NullUUID
	)
	if err := row.Scan(
		&doc.ID, &doc.TemplateID, &doc.TemplateVersion, &doc.TaskID, &clientID,
		&doc.Status, &doc.ArtifactRef, &doc.GeneratedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.ClientID = uuidPtr(clientID)
	return &doc, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
)

// PostgresTemplateStore implements store.TemplateStore. Placeholders,
// removed ones included, are stored as a JSONB array on the template row.
type PostgresTemplateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTemplateStore creates a PostgresTemplateStore.
// If logger is nil, a default logger will be used.
func NewPostgresTemplateStore(db store.DBTX, logger *slog.Logger) *PostgresTemplateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTemplateStore{
		db:     db,
		logger: logger.With(slog.String("component", "template_store")),
	}
}

var _ store.TemplateStore = (*PostgresTemplateStore)(nil)

// WithTx returns a store that runs its queries in tx.
func (s *PostgresTemplateStore) WithTx(tx *sql.Tx) *PostgresTemplateStore {
	return &PostgresTemplateStore{db: tx, logger: s.logger}
}

const templateColumns = `id, name, status, version, source_ref, placeholders, created_at, updated_at`

// Create implements store.TemplateStore.Create
func (s *PostgresTemplateStore) Create(ctx context.Context, tpl *domain.Template) error {
	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	placeholders, err := json.Marshal(nonNilPlaceholders(tpl.Placeholders))
	if err != nil {
		return fmt.Errorf("%w: encode placeholders: %v", store.ErrInvalidEntity, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tpl.ID, tpl.Name, tpl.Status, tpl.Version, tpl.SourceRef, placeholders, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to insert template", "template_id", tpl.ID, "error", err)
		return MapError(err)
	}
	return nil
}

// GetByID implements store.TemplateStore.GetByID
func (s *PostgresTemplateStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	tpl, err := scanTemplate(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrTemplateNotFound)
	}
	return tpl, nil
}

// Update implements store.TemplateStore.Update
func (s *PostgresTemplateStore) Update(ctx context.Context, tpl *domain.Template) error {
	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	placeholders, err := json.Marshal(nonNilPlaceholders(tpl.Placeholders))
	if err != nil {
		return fmt.Errorf("%w: encode placeholders: %v", store.ErrInvalidEntity, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE templates
		SET name = $2, status = $3, version = $4, source_ref = $5, placeholders = $6, updated_at = $7
		WHERE id = $1`,
		tpl.ID, tpl.Name, tpl.Status, tpl.Version, tpl.SourceRef, placeholders, tpl.UpdatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update template", "template_id", tpl.ID, "error", err)
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTemplateNotFound)
}

// Modify implements store.TemplateStore.Modify. The row is locked with
// SELECT ... FOR UPDATE for the duration of fn. A store already bound to a
// transaction runs inside it.
func (s *PostgresTemplateStore) Modify(
	ctx context.Context,
	id uuid.UUID,
	fn func(tpl *domain.Template) error,
) (*domain.Template, error) {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return s.modify(ctx, id, fn)
	}

	var out *domain.Template
	err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		out, err = s.WithTx(tx).modify(ctx, id, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresTemplateStore) modify(
	ctx context.Context,
	id uuid.UUID,
	fn func(tpl *domain.Template) error,
) (*domain.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1 FOR UPDATE`, id)
	tpl, err := scanTemplate(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrTemplateNotFound)
	}
	if err := fn(tpl); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// List implements store.TemplateStore.List
func (s *PostgresTemplateStore) List(ctx context.Context, status domain.TemplateStatus) ([]*domain.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE $1 = '' OR status = $1
		ORDER BY created_at ASC`, string(status))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list templates", "status", status, "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (*domain.Template, error) {
	var (
		tpl          domain.Template
		placeholders []byte
	)
	if err := row.Scan(
		&tpl.ID, &tpl.Name, &tpl.Status, &tpl.Version, &tpl.SourceRef,
		&placeholders, &tpl.CreatedAt, &tpl.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(placeholders, &tpl.Placeholders); err != nil {
		return nil, fmt.Errorf("decode placeholders of template %s: %w", tpl.ID, err)
	}
	return &tpl, nil
}

func nonNilPlaceholders(p []domain.Placeholder) []domain.Placeholder {
	if p == nil {
		return []domain.Placeholder{}
	}
	return p
}

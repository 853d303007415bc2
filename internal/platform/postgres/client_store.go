package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
)

// PostgresClientStore implements store.ClientStore. The partial unique index
// uq_clients_active_identifier keeps one active client per identifier.
type PostgresClientStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresClientStore creates a PostgresClientStore.
// If logger is nil, a default logger will be used.
func NewPostgresClientStore(db store.DBTX, logger *slog.Logger) *PostgresClientStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresClientStore{
		db:     db,
		logger: logger.With(slog.String("component", "client_store")),
	}
}

var _ store.ClientStore = (*PostgresClientStore)(nil)

const clientColumns = `id, COALESCE(national_id, ''), national_id_kind, COALESCE(email, ''), ` +
	`name, phone, address, archived_at, created_at, updated_at`

// GetByID implements store.ClientStore.GetByID
func (s *PostgresClientStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrClientNotFound)
	}
	return c, nil
}

// FindByNationalID implements store.ClientStore.FindByNationalID
func (s *PostgresClientStore) FindByNationalID(ctx context.Context, nationalID string) (*domain.Client, error) {
	return s.findActive(ctx, "national_id", nationalID)
}

// FindByEmail implements store.ClientStore.FindByEmail
func (s *PostgresClientStore) FindByEmail(ctx context.Context, email string) (*domain.Client, error) {
	return s.findActive(ctx, "email", email)
}

// findActive returns the oldest active client whose column equals value.
// column is always a constant chosen by this file.
func (s *PostgresClientStore) findActive(ctx context.Context, column, value string) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE `+column+` = $1 AND archived_at IS NULL
		ORDER BY created_at ASC
		LIMIT 1`, value)
	c, err := scanClient(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrClientNotFound)
	}
	return c, nil
}

// FindOrCreate implements store.ClientStore.FindOrCreate. The insert is a
// no-op when an active client already owns the identifier; that client is
// then read back.
func (s *PostgresClientStore) FindOrCreate(ctx context.Context, client *domain.Client) (*domain.Client, bool, error) {
	if err := client.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	address, err := json.Marshal(client.Address)
	if err != nil {
		return nil, false, fmt.Errorf("%w: encode address: %v", store.ErrInvalidEntity, err)
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO clients (id, national_id, national_id_kind, email, normalized_identifier,
			name, phone, address, archived_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (normalized_identifier) WHERE archived_at IS NULL DO NOTHING
		RETURNING id`,
		client.ID,
		nullString(client.NationalID),
		client.NationalIDKind,
		nullString(client.Email),
		client.NormalizedIdentifier(),
		client.Name,
		client.Phone,
		address,
		client.ArchivedAt,
		client.CreatedAt,
		client.UpdatedAt,
	).Scan(&id)

	switch {
	case err == nil:
		created := *client
		return &created, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		s.logger.ErrorContext(ctx, "failed to insert client", "client_id", client.ID, "error", err)
		return nil, false, MapError(err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE normalized_identifier = $1 AND archived_at IS NULL`, client.NormalizedIdentifier())
	existing, err := scanClient(row)
	if err != nil {
		// The owner was archived between the two statements.
		s.logger.WarnContext(ctx, "conflicting client vanished before read", "error", err)
		return nil, false, mapNotFound(err, store.ErrClientNotFound)
	}
	return existing, false, nil
}

// Update implements store.ClientStore.Update
func (s *PostgresClientStore) Update(ctx context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	address, err := json.Marshal(client.Address)
	if err != nil {
		return fmt.Errorf("%w: encode address: %v", store.ErrInvalidEntity, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET national_id = $2, national_id_kind = $3, email = $4, normalized_identifier = $5,
			name = $6, phone = $7, address = $8, archived_at = $9, updated_at = $10
		WHERE id = $1`,
		client.ID,
		nullString(client.NationalID),
		client.NationalIDKind,
		nullString(client.Email),
		client.NormalizedIdentifier(),
		client.Name,
		client.Phone,
		address,
		client.ArchivedAt,
		client.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrClientExists
		}
		s.logger.ErrorContext(ctx, "failed to update client", "client_id", client.ID, "error", err)
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrClientNotFound)
}

func scanClient(row scanner) (*domain.Client, error) {
	var (
		c          domain.Client
		address    []byte
		archivedAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID, &c.NationalID, &c.NationalIDKind, &c.Email,
		&c.Name, &c.Phone, &address, &archivedAt, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(address, &c.Address); err != nil {
		return nil, fmt.Errorf("decode address of client %s: %w", c.ID, err)
	}
	if archivedAt.Valid {
		t := archivedAt.Time
		c.ArchivedAt = &t
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/store"
	"github.com/phrazzld/docgen/internal/task"
)

// PostgresTaskStore implements the task.TaskStore interface using PostgreSQL
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
		now:    time.Now,
	}
}

var _ task.TaskStore = (*PostgresTaskStore)(nil)

const taskColumns = `id, template_id, template_version, requester_id, form_data, state, progress, ` +
	`status_message, attempts, error_class, client_id, document_id, created_at, updated_at, finished_at`

// Create persists a new task
func (s *PostgresTaskStore) Create(ctx context.Context, t *domain.GenerationTask) error {
	form, err := json.Marshal(t.FormData)
	if err != nil {
		return fmt.Errorf("%w: encode form data: %v", store.ErrInvalidEntity, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO generation_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID,
		t.TemplateID,
		t.TemplateVersion,
		t.RequesterID,
		form,
		t.State,
		t.Progress,
		t.StatusMessage,
		t.Attempts,
		t.ErrorClass,
		nullUUID(t.ClientID),
		nullUUID(t.DocumentID),
		t.CreatedAt,
		t.UpdatedAt,
		t.FinishedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save task", "task_id", t.ID, "error", err)
		return MapError(err)
	}
	return nil
}

// GetByID loads a task
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM generation_tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, mapNotFound(err, store.ErrTaskNotFound)
	}
	return t, nil
}

// Update saves the mutable task fields. Form data and template reference
// never change after creation.
func (s *PostgresTaskStore) Update(ctx context.Context, t *domain.GenerationTask) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET state = $2, progress = $3, status_message = $4, attempts = $5, error_class = $6,
			client_id = $7, document_id = $8, updated_at = $9, finished_at = $10
		WHERE id = $1`,
		t.ID,
		t.State,
		t.Progress,
		t.StatusMessage,
		t.Attempts,
		t.ErrorClass,
		nullUUID(t.ClientID),
		nullUUID(t.DocumentID),
		t.UpdatedAt,
		t.FinishedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update task",
			"task_id", t.ID,
			"state", t.State,
			"error", err)
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// ListByState returns tasks in state, oldest first. A positive olderThan
// keeps only tasks not updated within that duration.
func (s *PostgresTaskStore) ListByState(
	ctx context.Context,
	state domain.TaskState,
	olderThan time.Duration,
) ([]*domain.GenerationTask, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if olderThan > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+taskColumns+`
			FROM generation_tasks
			WHERE state = $1 AND updated_at < $2
			ORDER BY created_at ASC`, state, s.now().UTC().Add(-olderThan))
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+taskColumns+`
			FROM generation_tasks
			WHERE state = $1
			ORDER BY created_at ASC`, state)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query tasks by state", "state", state, "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.GenerationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to scan task row", "state", state, "error", err)
			return nil, MapError(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

func scanTask(row scanner) (*domain.GenerationTask, error) {
	var (
		t          domain.GenerationTask
		form       []byte
		clientID   uuid.NullUUID
		documentID uuid.NullUUID
		finishedAt sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.TemplateID, &t.TemplateVersion, &t.RequesterID, &form,
		&t.State, &t.Progress, &t.StatusMessage, &t.Attempts, &t.ErrorClass,
		&clientID, &documentID, &t.CreatedAt, &t.UpdatedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(form, &t.FormData); err != nil {
		return nil, fmt.Errorf("decode form data of task %s: %w", t.ID, err)
	}
	t.ClientID = uuidPtr(clientID)
	t.DocumentID = uuidPtr(documentID)
	if finishedAt.Valid {
		ft := finishedAt.Time
		t.FinishedAt = &ft
	}
	return &t, nil
}

// Package identity resolves form submissions to client records, creating a
// client on first sight and merging new details into it afterwards.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/domain/nationalid"
	"github.com/phrazzld/docgen/internal/redact"
	"github.com/phrazzld/docgen/internal/store"
)

// ErrNoIdentifier is returned when the candidates carry neither a national
// id nor an email.
var ErrNoIdentifier = errors.New("no client identifier in submission")

// NationalIDValidator normalizes and checksum-validates a national id.
type NationalIDValidator func(raw string) (string, domain.NationalIDKind, error)

// Engine deduplicates clients by normalized identifier.
type Engine struct {
	clients  store.ClientStore
	validate NationalIDValidator
	locks    *keyedLock
	logger   *slog.Logger
}

// NewEngine creates an Engine. A nil validator defaults to nationalid.Validate.
func NewEngine(clients store.ClientStore, validate NationalIDValidator, logger *slog.Logger) *Engine {
	if validate == nil {
		validate = nationalid.Validate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		clients:  clients,
		validate: validate,
		locks:    newKeyedLock(),
		logger:   logger.With("component", "identity_engine"),
	}
}

// Incoming builds the client data described by candidates. National ids are
// checksum-validated; an invalid one fails with domain.ErrInvalidChecksum.
// When several candidates provide the same field the first one wins.
func (e *Engine) Incoming(candidates []Candidate) (domain.Client, error) {
	var c domain.Client
	seen := make(map[Field]bool, len(candidates))
	for _, cand := range candidates {
		if cand.Field == FieldNationalID {
			id, kind, err := e.validate(cand.Value)
			if err != nil {
				return domain.Client{}, fmt.Errorf("field %s: %w", cand.Key, err)
			}
			if seen[FieldNationalID] {
				continue
			}
			c.NationalID, c.NationalIDKind = id, kind
			seen[FieldNationalID] = true
			continue
		}
		if seen[cand.Field] {
			continue
		}
		seen[cand.Field] = true
		assign(&c, cand.Field, cand.Value)
	}
	return c, nil
}

func assign(c *domain.Client, field Field, value string) {
	switch field {
	case FieldEmail:
		c.Email = strings.ToLower(value)
	case FieldName:
		c.Name = value
	case FieldPhone:
		c.Phone = value
	case FieldStreet:
		c.Address.Street = value
	case FieldNumber:
		c.Address.Number = value
	case FieldComplement:
		c.Address.Complement = value
	case FieldDistrict:
		c.Address.District = value
	case FieldCity:
		c.Address.City = value
	case FieldState:
		c.Address.State = value
	case FieldPostalCode:
		c.Address.PostalCode = value
	}
}

// Resolve finds the client matching candidates or creates one. The national
// id is tried first, then the email; the first match wins and receives the
// non-empty incoming fields. The boolean reports whether a client was created.
func (e *Engine) Resolve(ctx context.Context, candidates []Candidate) (*domain.Client, bool, error) {
	incoming, err := e.Incoming(candidates)
	if err != nil {
		return nil, false, err
	}
	if incoming.NormalizedIdentifier() == "" {
		return nil, false, ErrNoIdentifier
	}

	lockKeys := []string{incoming.NormalizedIdentifier()}
	if incoming.Email != "" {
		lockKeys = append(lockKeys, incoming.Email)
	}
	unlock := e.locks.Lock(lockKeys...)
	defer unlock()

	existing, err := e.lookup(ctx, incoming)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return e.merge(ctx, existing, incoming)
	}

	fresh, err := domain.NewClient(incoming)
	if err != nil {
		return nil, false, err
	}
	client, created, err := e.clients.FindOrCreate(ctx, fresh)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create client: %w", err)
	}
	if !created {
		// Another process created it between lookup and insert.
		return e.merge(ctx, client, incoming)
	}

	e.logger.InfoContext(ctx, "client created",
		"client_id", client.ID,
		"identifier", redact.Identifier(client.NormalizedIdentifier()))
	return client, true, nil
}

func (e *Engine) lookup(ctx context.Context, incoming domain.Client) (*domain.Client, error) {
	if incoming.NationalID != "" {
		c, err := e.clients.FindByNationalID(ctx, incoming.NationalID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, store.ErrClientNotFound) {
			return nil, fmt.Errorf("failed to look up client by national id: %w", err)
		}
	}
	if incoming.Email != "" {
		c, err := e.clients.FindByEmail(ctx, incoming.Email)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, store.ErrClientNotFound) {
			return nil, fmt.Errorf("failed to look up client by email: %w", err)
		}
	}
	return nil, nil
}

func (e *Engine) merge(ctx context.Context, existing *domain.Client, incoming domain.Client) (*domain.Client, bool, error) {
	if !existing.Merge(incoming) {
		return existing, false, nil
	}
	if err := e.clients.Update(ctx, existing); err != nil {
		return nil, false, fmt.Errorf("failed to update client: %w", err)
	}
	e.logger.DebugContext(ctx, "client updated", "client_id", existing.ID)
	return existing, false, nil
}

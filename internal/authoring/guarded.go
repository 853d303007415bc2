package authoring

import (
	"context"

	"github.com/phrazzld/docgen/internal/breaker"
)

// Guarded routes every call of a Client through a circuit breaker. While the
// breaker is open calls fail with a *breaker.OpenError and the wrapped client
// is not invoked.
type Guarded struct {
	client  Client
	breaker *breaker.Breaker
}

var _ Client = (*Guarded)(nil)

// NewGuarded wraps client with b.
func NewGuarded(client Client, b *breaker.Breaker) *Guarded {
	return &Guarded{client: client, breaker: b}
}

// Breaker returns the breaker guarding the client.
func (g *Guarded) Breaker() *breaker.Breaker { return g.breaker }

// FetchSource implements Client.
func (g *Guarded) FetchSource(ctx context.Context, sourceRef string) (string, error) {
	var text string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		text, err = g.client.FetchSource(ctx, sourceRef)
		return err
	})
	return text, err
}

// CopyTemplate implements Client.
func (g *Guarded) CopyTemplate(ctx context.Context, sourceRef, name string) (string, error) {
	var ref string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ref, err = g.client.CopyTemplate(ctx, sourceRef, name)
		return err
	})
	return ref, err
}

// ApplySubstitutions implements Client.
func (g *Guarded) ApplySubstitutions(ctx context.Context, artifactRef string, substitutions map[string]string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.client.ApplySubstitutions(ctx, artifactRef, substitutions)
	})
}

// DeleteArtifact implements Client.
func (g *Guarded) DeleteArtifact(ctx context.Context, artifactRef string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.client.DeleteArtifact(ctx, artifactRef)
	})
}

package authoring

import "context"

// Client is the document-authoring capability the generation pipeline calls.
// Every method may block on the network and must honour ctx.
type Client interface {
	// FetchSource returns the plain text of a template source, used to
	// extract placeholder markers.
	FetchSource(ctx context.Context, sourceRef string) (string, error)

	// CopyTemplate copies the template source into a new artifact named name
	// and returns the artifact reference.
	CopyTemplate(ctx context.Context, sourceRef, name string) (string, error)

	// ApplySubstitutions replaces every marker in the artifact with its value.
	// Keys of substitutions are literal marker texts, e.g. "{{nome}}".
	ApplySubstitutions(ctx context.Context, artifactRef string, substitutions map[string]string) error

	// DeleteArtifact removes an artifact. Deleting a missing artifact is not
	// an error.
	DeleteArtifact(ctx context.Context, artifactRef string) error
}

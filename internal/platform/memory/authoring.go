package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/authoring"
)

// Artifact is a generated document held by AuthoringClient.
type Artifact struct {
	Name      string
	SourceRef string
	Content   string
}

// AuthoringClient is an in-process authoring.Client. Sources come from Put
// or, when a source directory is configured, from files in it named by the
// source reference. Artifacts are plain text copies of their source.
type AuthoringClient struct {
	mu        sync.RWMutex
	sources   map[string]string
	artifacts map[string]*Artifact
	dir       fs.FS
}

var _ authoring.Client = (*AuthoringClient)(nil)

// NewAuthoringClient creates an AuthoringClient. sourceDir may be empty.
func NewAuthoringClient(sourceDir string) *AuthoringClient {
	c := &AuthoringClient{
		sources:   make(map[string]string),
		artifacts: make(map[string]*Artifact),
	}
	if sourceDir != "" {
		c.dir = os.DirFS(sourceDir)
	}
	return c
}

// Put registers a template source under ref.
func (c *AuthoringClient) Put(ref, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[ref] = text
}

// Artifact returns a copy of the artifact stored under ref.
func (c *AuthoringClient) Artifact(ref string) (Artifact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.artifacts[ref]
	if !ok {
		return Artifact{}, false
	}
	return *a, true
}

// FetchSource implements authoring.Client.
func (c *AuthoringClient) FetchSource(ctx context.Context, sourceRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.RLock()
	text, ok := c.sources[sourceRef]
	c.mu.RUnlock()
	if ok {
		return text, nil
	}
	if c.dir == nil || !fs.ValidPath(sourceRef) {
		return "", fmt.Errorf("%w: source %q", authoring.ErrNotFound, sourceRef)
	}

	data, err := fs.ReadFile(c.dir, sourceRef)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: source %q", authoring.ErrNotFound, sourceRef)
	case errors.Is(err, fs.ErrPermission):
		return "", fmt.Errorf("%w: source %q", authoring.ErrPermission, sourceRef)
	case err != nil:
		return "", fmt.Errorf("%w: read source %q: %v", authoring.ErrTransient, sourceRef, err)
	}
	return string(data), nil
}

// CopyTemplate implements authoring.Client.
func (c *AuthoringClient) CopyTemplate(ctx context.Context, sourceRef, name string) (string, error) {
	text, err := c.FetchSource(ctx, sourceRef)
	if err != nil {
		return "", err
	}
	ref := "mem-" + uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[ref] = &Artifact{Name: name, SourceRef: sourceRef, Content: text}
	return ref, nil
}

// ApplySubstitutions implements authoring.Client.
func (c *AuthoringClient) ApplySubstitutions(ctx context.Context, artifactRef string, substitutions map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.artifacts[artifactRef]
	if !ok {
		return fmt.Errorf("%w: artifact %q", authoring.ErrNotFound, artifactRef)
	}
	pairs := make([]string, 0, 2*len(substitutions))
	for marker, value := range substitutions {
		pairs = append(pairs, marker, value)
	}
	a.Content = strings.NewReplacer(pairs...).Replace(a.Content)
	return nil
}

// DeleteArtifact implements authoring.Client.
func (c *AuthoringClient) DeleteArtifact(_ context.Context, artifactRef string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.artifacts, artifactRef)
	return nil
}

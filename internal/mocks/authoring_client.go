package mocks

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/phrazzld/docgen/internal/authoring"
)

// MockAuthoringClient implements authoring.Client for testing
type MockAuthoringClient struct {
	// Custom behavior functions
	FetchSourceFn        func(ctx context.Context, sourceRef string) (string, error)
	CopyTemplateFn       func(ctx context.Context, sourceRef, name string) (string, error)
	ApplySubstitutionsFn func(ctx context.Context, artifactRef string, substitutions map[string]string) error
	DeleteArtifactFn     func(ctx context.Context, artifactRef string) error

	// Default response values
	Source string
	Err    error

	mu sync.Mutex

	// Call tracking for verification
	CopyCalls    int
	ApplyCalls   int
	Applied      map[string]map[string]string
	DeletedRefs  []string
	FetchedRefs  []string
	copySequence int
}

var _ authoring.Client = (*MockAuthoringClient)(nil)

// FetchSource implements the authoring.Client interface
func (m *MockAuthoringClient) FetchSource(ctx context.Context, sourceRef string) (string, error) {
	m.mu.Lock()
	m.FetchedRefs = append(m.FetchedRefs, sourceRef)
	m.mu.Unlock()

	if m.FetchSourceFn != nil {
		return m.FetchSourceFn(ctx, sourceRef)
	}
	return m.Source, m.Err
}

// CopyTemplate implements the authoring.Client interface. Without a custom
// function it returns sequential artifact references.
func (m *MockAuthoringClient) CopyTemplate(ctx context.Context, sourceRef, name string) (string, error) {
	m.mu.Lock()
	m.CopyCalls++
	m.copySequence++
	seq := m.copySequence
	m.mu.Unlock()

	if m.CopyTemplateFn != nil {
		return m.CopyTemplateFn(ctx, sourceRef, name)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return fmt.Sprintf("artifact-%d", seq), nil
}

// ApplySubstitutions implements the authoring.Client interface
func (m *MockAuthoringClient) ApplySubstitutions(
	ctx context.Context,
	artifactRef string,
	substitutions map[string]string,
) error {
	m.mu.Lock()
	m.ApplyCalls++
	m.mu.Unlock()

	if m.ApplySubstitutionsFn != nil {
		if err := m.ApplySubstitutionsFn(ctx, artifactRef, substitutions); err != nil {
			return err
		}
	} else if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	if m.Applied == nil {
		m.Applied = make(map[string]map[string]string)
	}
	m.Applied[artifactRef] = maps.Clone(substitutions)
	m.mu.Unlock()
	return nil
}

// DeleteArtifact implements the authoring.Client interface
func (m *MockAuthoringClient) DeleteArtifact(ctx context.Context, artifactRef string) error {
	m.mu.Lock()
	m.DeletedRefs = append(m.DeletedRefs, artifactRef)
	m.mu.Unlock()

	if m.DeleteArtifactFn != nil {
		return m.DeleteArtifactFn(ctx, artifactRef)
	}
	return nil
}

// Snapshot returns copies of the tracked calls, safe to read while the mock
// is still in use.
func (m *MockAuthoringClient) Snapshot() (copies, applies int, deleted []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CopyCalls, m.ApplyCalls, append([]string(nil), m.DeletedRefs...)
}

// NewMockAuthoringClientWithError creates a client whose calls all fail with err
func NewMockAuthoringClientWithError(err error) *MockAuthoringClient {
	return &MockAuthoringClient{Err: err}
}

// NewMockAuthoringClientFailingApply creates a client whose first n
// ApplySubstitutions calls fail with err
func NewMockAuthoringClientFailingApply(n int, err error) *MockAuthoringClient {
	var mu sync.Mutex
	calls := 0
	return &MockAuthoringClient{
		ApplySubstitutionsFn: func(context.Context, string, map[string]string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls <= n {
				return err
			}
			return nil
		},
	}
}

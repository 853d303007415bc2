package authoring_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/docgen/internal/authoring"
	"github.com/phrazzld/docgen/internal/breaker"
	"github.com/phrazzld/docgen/internal/mocks"
	"github.com/phrazzld/docgen/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want retry.Class
	}{
		{fmt.Errorf("copy: %w", authoring.ErrTransient), retry.Retryable},
		{authoring.ErrRateLimited, retry.Retryable},
		{fmt.Errorf("%w: deadline", retry.ErrAttemptTimeout), retry.Retryable},
		{errors.New("connection reset by peer"), retry.Retryable},
		{&breaker.OpenError{RetryAfter: time.Second}, retry.CircuitOpen},
		{authoring.ErrNotFound, retry.Fatal},
		{authoring.ErrPermission, retry.Fatal},
		{authoring.ErrInvalidRequest, retry.Fatal},
		{context.Canceled, retry.Fatal},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, authoring.Classify(tc.err), "%v", tc.err)
	}
}

func TestIsDownstreamFailure(t *testing.T) {
	t.Parallel()

	assert.True(t, authoring.IsDownstreamFailure(authoring.ErrTransient))
	assert.True(t, authoring.IsDownstreamFailure(authoring.ErrRateLimited))
	assert.False(t, authoring.IsDownstreamFailure(nil))
	assert.False(t, authoring.IsDownstreamFailure(authoring.ErrNotFound))
	assert.False(t, authoring.IsDownstreamFailure(fmt.Errorf("apply: %w", authoring.ErrInvalidRequest)))
	assert.False(t, authoring.IsDownstreamFailure(context.Canceled))
}

func TestGuardedFailsFastWhenOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := mocks.NewMockAuthoringClientWithError(authoring.ErrTransient)
	b := breaker.New(breaker.Settings{
		Name:      "authoring",
		Threshold: 2,
		Window:    time.Minute,
		Cooldown:  time.Minute,
		IsFailure: authoring.IsDownstreamFailure,
	})
	guarded := authoring.NewGuarded(client, b)

	for range 2 {
		_, err := guarded.CopyTemplate(ctx, "src", "name")
		assert.ErrorIs(t, err, authoring.ErrTransient)
	}
	require.Equal(t, breaker.StateOpen, guarded.Breaker().State())

	err := guarded.ApplySubstitutions(ctx, "artifact-1", map[string]string{"{{nome}}": "Ana"})
	assert.ErrorIs(t, err, breaker.ErrOpen)

	copies, applies, _ := client.Snapshot()
	assert.Equal(t, 2, copies)
	assert.Zero(t, applies, "open breaker must not reach the client")
}

func TestGuardedIgnoresRequestErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := mocks.NewMockAuthoringClientWithError(authoring.ErrNotFound)
	b := breaker.New(breaker.Settings{Threshold: 1, Cooldown: time.Minute, IsFailure: authoring.IsDownstreamFailure})
	guarded := authoring.NewGuarded(client, b)

	_, err := guarded.FetchSource(ctx, "missing")
	assert.ErrorIs(t, err, authoring.ErrNotFound)
	assert.Equal(t, breaker.StateClosed, b.State())

	client.Source, client.Err = "Olá {{nome}}", nil
	text, err := guarded.FetchSource(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "Olá {{nome}}", text)
	require.NoError(t, guarded.DeleteArtifact(ctx, "artifact-1"))
}

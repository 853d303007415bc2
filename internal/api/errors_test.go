package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/docgen/internal/authoring"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/retry"
	"github.com/phrazzld/docgen/internal/service/auth"
	"github.com/phrazzld/docgen/internal/store"
	"github.com/phrazzld/docgen/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"not found", fmt.Errorf("load template: %w", store.ErrNotFound), http.StatusNotFound},
		{"missing fields", domain.NewMissingFieldError([]string{"cpf"}), http.StatusUnprocessableEntity},
		{"bad checksum", fmt.Errorf("%w: repeated digits", domain.ErrInvalidChecksum), http.StatusUnprocessableEntity},
		{"unknown field", domain.ErrUnknownField, http.StatusUnprocessableEntity},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest},
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"duplicate", store.ErrDuplicate, http.StatusConflict},
		{"not published", domain.ErrTemplateNotPublished, http.StatusConflict},
		{"transition", &domain.TransitionError{Machine: "template", From: "draft", To: "published"}, http.StatusConflict},
		{"not cancellable", task.ErrNotCancellable, http.StatusConflict},
		{"not owned", task.ErrTaskNotOwned, http.StatusConflict},
		{"queue full", fmt.Errorf("%w: queue capacity 1 reached", task.ErrQueueFull), http.StatusServiceUnavailable},
		{"authoring", &retry.ExhaustedError{Attempts: 3, Last: authoring.ErrTransient}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "Resource not found", GetSafeErrorMessage(store.ErrNotFound))
	assert.Equal(t, "Missing required fields", GetSafeErrorMessage(domain.NewMissingFieldError([]string{"cpf"})))
	assert.Equal(t, "Invalid value for field data",
		GetSafeErrorMessage(&domain.FieldValueError{Key: "data", Type: domain.FieldTypeDate, Reason: "expected a date"}))
	assert.Equal(t, "An unexpected error occurred",
		GetSafeErrorMessage(errors.New("pq: password authentication failed for user docgen")))
}

func TestHandleAPIError(t *testing.T) {
	t.Parallel()

	t.Run("missing fields carry their keys", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/generations", nil)

		HandleAPIError(w, r, domain.NewMissingFieldError([]string{"rg", "cpf"}), "")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var body struct {
			Error   string              `json:"error"`
			Details map[string][]string `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Missing required fields", body.Error)
		assert.Equal(t, []string{"cpf", "rg"}, body.Details["missing_fields"])
	})

	t.Run("fallback replaces generic message", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/templates", nil)

		HandleAPIError(w, r, errors.New("connection reset"), "Failed to create template")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Failed to create template")
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}

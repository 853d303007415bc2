package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/docgen/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceID(t *testing.T) {
	t.Parallel()
	assert.Empty(t, GetTraceID(context.Background()))

	ctx := SetTraceID(context.Background())
	first := GetTraceID(ctx)
	assert.Len(t, first, 36)
	assert.NotEqual(t, first, GetTraceID(SetTraceID(context.Background())))
}

func TestRequesterID(t *testing.T) {
	t.Parallel()
	_, ok := GetRequesterID(context.Background())
	assert.False(t, ok)

	_, ok = GetRequesterID(WithRequesterID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := GetRequesterID(WithRequesterID(context.Background(), "escritorio-42"))
	assert.True(t, ok)
	assert.Equal(t, "escritorio-42", id)
}

type sample struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=0"`
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"a","count":1}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "unknown field", body: `{"name":"a","extra":true}`, wantErr: true},
		{name: "trailing data", body: `{"name":"a"} {"name":"b"}`, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var got sample
			err := DecodeJSON(httptest.NewRecorder(), r, &got)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", got.Name)
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), r, &sample{}), ErrEmptyBody)
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateRequest(&sample{Name: "a"}))
	assert.Error(t, ValidateRequest(&sample{Count: -1}))
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := logger.WithLogger(SetTraceID(context.Background()), log)
	r := httptest.NewRequest(http.MethodGet, "/api/generations", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to submit generation",
		errors.New("dial postgres://docgen:hunter2@db:5432/docgen"),
		WithDetails(map[string]any{"missing": []string{"cpf"}}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Failed to submit generation", body["error"])
	assert.Equal(t, GetTraceID(ctx), body["trace_id"])
	assert.NotNil(t, body["details"])
	assert.NotContains(t, w.Body.String(), "hunter2")

	assert.Contains(t, logs.String(), `"level":"ERROR"`)
	assert.NotContains(t, logs.String(), "hunter2")
}

func TestRespondWithErrorLogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		opts   []ResponseOption
		level  string
	}{
		{name: "client error", status: http.StatusBadRequest, level: `"level":"DEBUG"`},
		{name: "rate limited", status: http.StatusTooManyRequests, level: `"level":"WARN"`},
		{name: "elevated", status: http.StatusUnauthorized, opts: []ResponseOption{WithElevatedLogLevel()}, level: `"level":"WARN"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var logs bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
			r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(logger.WithLogger(context.Background(), log))

			RespondWithErrorAndLog(httptest.NewRecorder(), r, tc.status, "nope", nil, tc.opts...)
			assert.Contains(t, logs.String(), tc.level)
		})
	}
}

package gdocs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/phrazzld/docgen/internal/authoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// fakeGoogle serves the Drive and Docs endpoints the client uses.
type fakeGoogle struct {
	mu       sync.Mutex
	batches  [][]map[string]any
	copies   []map[string]any
	deleted  []string
	failNext map[string]int // path prefix -> status
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for prefix, status := range f.failNext {
		if strings.HasPrefix(r.URL.Path, prefix) {
			delete(f.failNext, prefix)
			w.WriteHeader(status)
			reason := "backendError"
			if status == http.StatusForbidden {
				reason = "userRateLimitExceeded"
			}
			_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"injected","errors":[{"reason":%q}]}}`, status, reason)
			return
		}
	}

	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/files/") && strings.HasSuffix(r.URL.Path, "/copy"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.copies = append(f.copies, body)
		_, _ = io.WriteString(w, `{"id":"artifact-1"}`)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/files/"):
		f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/files/"))
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		var body struct {
			Requests []map[string]any `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.batches = append(f.batches, body.Requests)
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/documents/"):
		_, _ = io.WriteString(w, `{
			"documentId": "src-1",
			"body":       {"content": [
				{"paragraph": {"elements": [{"textRun": {"content": "Eu, {{Nome}}, "}}, {"textRun": {"content": "CPF {{CPF}}\n"}}]}},
				{"table": {"tableRows": [{"tableCells": [{"content": [
					{"paragraph": {"elements": [{"textRun": {"content": "{{Cidade}}\n"}}]}}
				]}]}]}}
			]},
			"headers": {"h1": {"content": [{"paragraph": {"elements": [{"textRun": {"content": "{{Data|date}}"}}]}}]}}
		}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGoogle) fail(prefix string, status int) {
	f.mu.Lock()
	f.failNext[prefix] = status
	f.mu.Unlock()
}

func (f *fakeGoogle) snapshot() (copies []map[string]any, deleted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append(copies, f.copies...), append(deleted, f.deleted...)
}

func newTestClient(t *testing.T, cfg Config) (*Client, *fakeGoogle) {
	t.Helper()
	fake := &fakeGoogle{failNext: map[string]int{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg.RateLimit = 1000
	cfg.Burst = 100
	c, err := New(context.Background(), cfg, nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c, fake
}

func TestFetchSource(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, Config{})

	text, err := c.FetchSource(context.Background(), "src-1")
	require.NoError(t, err)
	assert.Equal(t, "Eu, {{Nome}}, CPF {{CPF}}\n{{Cidade}}\n{{Data|date}}", text)
}

func TestCopyTemplate(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t, Config{OutputFolderID: "folder-9"})

	ref, err := c.CopyTemplate(context.Background(), "src-1", "Procuração - Ana")
	require.NoError(t, err)
	assert.Equal(t, "artifact-1", ref)

	copies, _ := fake.snapshot()
	require.Len(t, copies, 1)
	assert.Equal(t, "Procuração - Ana", copies[0]["name"])
	assert.Equal(t, []any{"folder-9"}, copies[0]["parents"])
}

func TestApplySubstitutions(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t, Config{ChunkSize: 2})

	err := c.ApplySubstitutions(context.Background(), "artifact-1", map[string]string{
		"{{Nome}}":   "Ana",
		"{{CPF}}":    "529.982.247-25",
		"{{Email?}}": "",
	})
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.batches, 2, "three replacements in chunks of two")

	replaced := map[string]any{}
	for _, batch := range fake.batches {
		for _, req := range batch {
			rat := req["replaceAllText"].(map[string]any)
			criteria := rat["containsText"].(map[string]any)
			assert.Equal(t, true, criteria["matchCase"])
			replaced[criteria["text"].(string)] = rat["replaceText"]
		}
	}
	assert.Equal(t, map[string]any{
		"{{Nome}}":   "Ana",
		"{{CPF}}":    "529.982.247-25",
		"{{Email?}}": "",
	}, replaced, "empty values are sent explicitly")
}

func TestApplySubstitutionsNothingToDo(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t, Config{})
	require.NoError(t, c.ApplySubstitutions(context.Background(), "artifact-1", nil))
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.batches)
}

func TestDeleteArtifact(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t, Config{})

	require.NoError(t, c.DeleteArtifact(context.Background(), "artifact-1"))
	_, deleted := fake.snapshot()
	assert.Equal(t, []string{"artifact-1"}, deleted)

	fake.fail("/files/", http.StatusNotFound)
	assert.NoError(t, c.DeleteArtifact(context.Background(), "gone"), "missing artifact counts as deleted")
}

func TestErrorsMapToAuthoringErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, authoring.ErrRateLimited},
		{http.StatusForbidden, authoring.ErrRateLimited},
		{http.StatusUnauthorized, authoring.ErrPermission},
		{http.StatusNotFound, authoring.ErrNotFound},
		{http.StatusServiceUnavailable, authoring.ErrTransient},
		{http.StatusBadRequest, authoring.ErrInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c, fake := newTestClient(t, Config{})
			fake.fail("/v1/documents/", tc.status)

			err := c.ApplySubstitutions(context.Background(), "artifact-1", map[string]string{"{{Nome}}": "Ana"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapError("op", nil))
	assert.ErrorIs(t, mapError("op", context.Canceled), context.Canceled)
	assert.NotErrorIs(t, mapError("op", context.Canceled), authoring.ErrTransient)

	forbidden := &googleapi.Error{Code: http.StatusForbidden, Message: "caller lacks access"}
	assert.ErrorIs(t, mapError("op", forbidden), authoring.ErrPermission)

	assert.ErrorIs(t, mapError("op", errors.New("connection reset by peer")), authoring.ErrTransient)
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/authoring"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/domain/keys"
	"github.com/phrazzld/docgen/internal/mocks"
	"github.com/phrazzld/docgen/internal/placeholder"
	"github.com/phrazzld/docgen/internal/platform/memory"
	"github.com/phrazzld/docgen/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procuracaoSource = "Eu, {{Nome Completo}}, CPF {{CPF}}, nomeio meu procurador."

func newTemplateRouter(t *testing.T, source *mocks.MockAuthoringClient) http.Handler {
	t.Helper()
	registry := placeholder.NewRegistry(keys.NewNormalizer(keys.DefaultFallback), testLogger())
	svc, err := service.NewTemplateService(memory.NewTemplateStore(), registry, source, testLogger())
	require.NoError(t, err)
	h := NewTemplateHandler(svc, testLogger())

	r := chi.NewRouter()
	r.Post("/api/templates", h.Create)
	r.Get("/api/templates", h.List)
	r.Get("/api/templates/{id}", h.Get)
	r.Post("/api/templates/{id}/sync", h.Sync)
	r.Put("/api/templates/{id}/status", h.Transition)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, target, body string, out any) int {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestTemplateHandler_Lifecycle(t *testing.T) {
	t.Parallel()

	source := &mocks.MockAuthoringClient{Source: procuracaoSource}
	router := newTemplateRouter(t, source)

	var created TemplateResponse
	status := doJSON(t, router, http.MethodPost, "/api/templates",
		`{"name":"Procuração","source_ref":"doc-1"}`, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "draft", created.Status)
	require.Len(t, created.Placeholders, 2)
	assert.Equal(t, "nome_completo", created.Placeholders[0].Key)

	base := "/api/templates/" + created.ID.String()

	var fetched TemplateResponse
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, base, "", &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	// Draft cannot jump straight to published.
	assert.Equal(t, http.StatusConflict,
		doJSON(t, router, http.MethodPut, base+"/status", `{"status":"published"}`, nil))

	var moved TemplateResponse
	require.Equal(t, http.StatusOK,
		doJSON(t, router, http.MethodPut, base+"/status", `{"status":"reviewing"}`, &moved))
	assert.Equal(t, "reviewing", moved.Status)
	require.Equal(t, http.StatusOK,
		doJSON(t, router, http.MethodPut, base+"/status", `{"status":"published"}`, &moved))
	assert.Equal(t, "published", moved.Status)

	var published []TemplateResponse
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/api/templates?status=published", "", &published))
	require.Len(t, published, 1)
	assert.Equal(t, created.ID, published[0].ID)

	source.FetchSourceFn = func(context.Context, string) (string, error) {
		return "Eu, {{Nome Completo}}, RG {{RG}}, nomeio meu procurador.", nil
	}
	var synced SyncResponse
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, base+"/sync", "", &synced))
	assert.True(t, synced.Changed)
	assert.Equal(t, []string{"rg"}, synced.Added)
	assert.Equal(t, []string{"cpf"}, synced.Removed)
	assert.Equal(t, []string{"nome_completo"}, synced.Unchanged)
	assert.Empty(t, synced.Malformed)
	assert.Equal(t, 2, synced.Template.Version)
}

func TestTemplateHandler_Errors(t *testing.T) {
	t.Parallel()

	router := newTemplateRouter(t, mocks.NewMockAuthoringClientWithError(authoring.ErrNotFound))

	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, router, http.MethodPost, "/api/templates", `{"name":""}`, nil))
	assert.Equal(t, http.StatusBadGateway,
		doJSON(t, router, http.MethodPost, "/api/templates", `{"name":"Contrato","source_ref":"missing"}`, nil))
	assert.Equal(t, http.StatusNotFound,
		doJSON(t, router, http.MethodGet, "/api/templates/"+uuid.NewString(), "", nil))
	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, router, http.MethodGet, "/api/templates?status=bogus", "", nil))

	noMarkers := newTemplateRouter(t, &mocks.MockAuthoringClient{Source: "Sem campos."})
	var empty TemplateResponse
	require.Equal(t, http.StatusCreated,
		doJSON(t, noMarkers, http.MethodPost, "/api/templates", `{"name":"Vazio","source_ref":"doc-2"}`, &empty))
	assert.Empty(t, empty.Placeholders)
	base := "/api/templates/" + empty.ID.String() + "/status"
	require.Equal(t, http.StatusOK, doJSON(t, noMarkers, http.MethodPut, base, `{"status":"reviewing"}`, nil))
	assert.Equal(t, http.StatusConflict, doJSON(t, noMarkers, http.MethodPut, base, `{"status":"published"}`, nil))
}

func TestDocumentHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	documents := memory.NewDocumentStore()
	svc, err := service.NewDocumentService(documents, testLogger())
	require.NoError(t, err)
	h := NewDocumentHandler(svc, testLogger())

	router := chi.NewRouter()
	router.Get("/api/documents/{id}", h.Get)
	router.Put("/api/documents/{id}/status", h.Transition)
	router.Get("/api/templates/{id}/documents", h.ListByTemplate)

	tpl, err := domain.NewTemplate("Procuração", "doc-1")
	require.NoError(t, err)
	doc, err := domain.NewDocument(domain.NewGenerationTask(tpl, "escritorio-42", map[string]any{}), "artifact-1")
	require.NoError(t, err)
	require.NoError(t, documents.Create(ctx, doc))

	base := "/api/documents/" + doc.ID.String()

	var got DocumentResponse
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, base, "", &got))
	assert.Equal(t, "draft", got.Status)
	assert.Equal(t, "artifact-1", got.ArtifactRef)

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPut, base+"/status", `{"status":"active"}`, &got))
	assert.Equal(t, "active", got.Status)
	assert.Equal(t, http.StatusConflict,
		doJSON(t, router, http.MethodPut, base+"/status", `{"status":"draft"}`, nil))
	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, router, http.MethodPut, base+"/status", `{}`, nil))

	var list []DocumentResponse
	require.Equal(t, http.StatusOK,
		doJSON(t, router, http.MethodGet, "/api/templates/"+tpl.ID.String()+"/documents", "", &list))
	require.Len(t, list, 1)
	assert.Equal(t, doc.ID, list[0].ID)

	assert.Equal(t, http.StatusNotFound,
		doJSON(t, router, http.MethodGet, "/api/documents/"+uuid.NewString(), "", nil))
}

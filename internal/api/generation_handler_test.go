package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/api/shared"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/events"
	"github.com/phrazzld/docgen/internal/store"
	"github.com/phrazzld/docgen/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrchestrator implements GenerationOrchestrator for handler tests.
type fakeOrchestrator struct {
	SubmitFn    func(ctx context.Context, req task.SubmitRequest) (uuid.UUID, error)
	GetStatusFn func(ctx context.Context, id uuid.UUID) (domain.TaskSnapshot, error)
	CancelFn    func(ctx context.Context, id uuid.UUID) error
}

func (f *fakeOrchestrator) Submit(ctx context.Context, req task.SubmitRequest) (uuid.UUID, error) {
	return f.SubmitFn(ctx, req)
}

func (f *fakeOrchestrator) GetStatus(ctx context.Context, id uuid.UUID) (domain.TaskSnapshot, error) {
	return f.GetStatusFn(ctx, id)
}

func (f *fakeOrchestrator) Cancel(ctx context.Context, id uuid.UUID) error {
	return f.CancelFn(ctx, id)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withRequester stands in for the auth middleware.
func withRequester(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.WithRequesterID(r.Context(), id)))
		})
	}
}

func newGenerationRouter(h *GenerationHandler, requester string) http.Handler {
	r := chi.NewRouter()
	if requester != "" {
		r.Use(withRequester(requester))
	}
	r.Post("/api/generations", h.Submit)
	r.Get("/api/generations/{id}", h.Status)
	r.Post("/api/generations/{id}/cancel", h.Cancel)
	r.Get("/api/generations/{id}/events", h.Events)
	return r
}

func snapshot(id uuid.UUID, state domain.TaskState, progress int) domain.TaskSnapshot {
	return domain.TaskSnapshot{
		TaskID:        id,
		TemplateID:    uuid.New(),
		State:         state,
		Progress:      progress,
		StatusMessage: string(state),
		UpdatedAt:     time.Now().UTC(),
	}
}

func TestGenerationHandler_Submit(t *testing.T) {
	t.Parallel()

	templateID := uuid.New()
	taskID := uuid.New()
	body := fmt.Sprintf(`{"template_id":%q,"form_data":{"Nome Completo":"Maria Silva","CPF":"529.982.247-25"}}`, templateID)

	t.Run("accepted", func(t *testing.T) {
		var got task.SubmitRequest
		orch := &fakeOrchestrator{SubmitFn: func(_ context.Context, req task.SubmitRequest) (uuid.UUID, error) {
			got = req
			return taskID, nil
		}}
		router := newGenerationRouter(NewGenerationHandler(orch, events.NewBroadcaster(4, testLogger()), testLogger()), "escritorio-42")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(body)))

		require.Equal(t, http.StatusAccepted, w.Code)
		var resp SubmitGenerationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, taskID, resp.TaskID)
		assert.Equal(t, "/api/generations/"+taskID.String()+"/events", resp.EventsURL)
		assert.Equal(t, "/api/generations/"+taskID.String(), w.Header().Get("Location"))

		assert.Equal(t, templateID, got.TemplateID)
		assert.Equal(t, "escritorio-42", got.RequesterID)
		assert.Equal(t, "Maria Silva", got.FormData["Nome Completo"])
	})

	tests := []struct {
		name      string
		requester string
		body      string
		err       error
		status    int
	}{
		{name: "no requester", body: body, status: http.StatusUnauthorized},
		{name: "malformed body", requester: "r", body: `{"template_id":`, status: http.StatusBadRequest},
		{name: "missing form", requester: "r", body: fmt.Sprintf(`{"template_id":%q}`, templateID), status: http.StatusBadRequest},
		{name: "missing fields", requester: "r", body: body, err: domain.NewMissingFieldError([]string{"rg"}), status: http.StatusUnprocessableEntity},
		{name: "bad checksum", requester: "r", body: body, err: domain.ErrInvalidChecksum, status: http.StatusUnprocessableEntity},
		{name: "unpublished template", requester: "r", body: body, err: domain.ErrTemplateNotPublished, status: http.StatusConflict},
		{name: "unknown template", requester: "r", body: body, err: store.ErrNotFound, status: http.StatusNotFound},
		{name: "queue full", requester: "r", body: body, err: task.ErrQueueFull, status: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			orch := &fakeOrchestrator{SubmitFn: func(context.Context, task.SubmitRequest) (uuid.UUID, error) {
				return uuid.Nil, tc.err
			}}
			router := newGenerationRouter(NewGenerationHandler(orch, events.NewBroadcaster(4, testLogger()), testLogger()), tc.requester)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(tc.body)))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestGenerationHandler_Status(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	orch := &fakeOrchestrator{GetStatusFn: func(_ context.Context, id uuid.UUID) (domain.TaskSnapshot, error) {
		if id != taskID {
			return domain.TaskSnapshot{}, store.ErrNotFound
		}
		return snapshot(id, domain.TaskStateSuccess, 100), nil
	}}
	router := newGenerationRouter(NewGenerationHandler(orch, events.NewBroadcaster(4, testLogger()), testLogger()), "r")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generations/"+taskID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp TaskStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.State)
	assert.Equal(t, 100, resp.Progress)
	assert.True(t, resp.Terminal)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generations/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generations/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerationHandler_Cancel(t *testing.T) {
	t.Parallel()

	pending := uuid.New()
	finished := uuid.New()
	orch := &fakeOrchestrator{
		CancelFn: func(_ context.Context, id uuid.UUID) error {
			if id == finished {
				return fmt.Errorf("%w: task is success", task.ErrNotCancellable)
			}
			return nil
		},
		GetStatusFn: func(_ context.Context, id uuid.UUID) (domain.TaskSnapshot, error) {
			return snapshot(id, domain.TaskStateCancelled, 0), nil
		},
	}
	router := newGenerationRouter(NewGenerationHandler(orch, events.NewBroadcaster(4, testLogger()), testLogger()), "r")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/generations/"+pending.String()+"/cancel", nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"cancelled"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/generations/"+finished.String()+"/cancel", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

// nextEvent reads one SSE frame, skipping comments.
func nextEvent(t *testing.T, r *bufio.Reader) (events.ProgressEvent, error) {
	t.Helper()
	var data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return events.ProgressEvent{}, err
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			var ev events.ProgressEvent
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			return ev, nil
		}
	}
}

func TestGenerationHandler_Events(t *testing.T) {
	t.Parallel()

	t.Run("finished task gets one event", func(t *testing.T) {
		taskID := uuid.New()
		orch := &fakeOrchestrator{GetStatusFn: func(_ context.Context, id uuid.UUID) (domain.TaskSnapshot, error) {
			return snapshot(id, domain.TaskStateFailure, 40), nil
		}}
		router := newGenerationRouter(NewGenerationHandler(orch, events.NewBroadcaster(4, testLogger()), testLogger()), "r")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generations/"+taskID.String()+"/events", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		assert.Equal(t, 1, strings.Count(w.Body.String(), "event: progress"))
		assert.Contains(t, w.Body.String(), `"state":"failure"`)
	})

	t.Run("unknown task", func(t *testing.T) {
		broadcaster := events.NewBroadcaster(4, testLogger())
		orch := &fakeOrchestrator{GetStatusFn: func(context.Context, uuid.UUID) (domain.TaskSnapshot, error) {
			return domain.TaskSnapshot{}, store.ErrNotFound
		}}
		router := newGenerationRouter(NewGenerationHandler(orch, broadcaster, testLogger()), "r")

		taskID := uuid.New()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generations/"+taskID.String()+"/events", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Zero(t, broadcaster.Subscribers(taskID))
	})

	t.Run("streams until terminal", func(t *testing.T) {
		taskID := uuid.New()
		broadcaster := events.NewBroadcaster(8, testLogger())
		orch := &fakeOrchestrator{GetStatusFn: func(_ context.Context, id uuid.UUID) (domain.TaskSnapshot, error) {
			return snapshot(id, domain.TaskStateProcessing, 10), nil
		}}
		srv := httptest.NewServer(newGenerationRouter(NewGenerationHandler(orch, broadcaster, testLogger()), "r"))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/generations/"+taskID.String()+"/events", nil)
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		reader := bufio.NewReader(resp.Body)

		first, err := nextEvent(t, reader)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStateProcessing, first.State)
		assert.Equal(t, 10, first.Progress)

		// The initial event is written after subscribing.
		require.Equal(t, 1, broadcaster.Subscribers(taskID))

		publish := func(state domain.TaskState, progress int) {
			ev := events.NewProgressEvent(snapshot(taskID, state, progress))
			require.NoError(t, broadcaster.Publish(ctx, ev))
		}
		publish(domain.TaskStateProcessing, 60)
		publish(domain.TaskStateSuccess, 100)

		second, err := nextEvent(t, reader)
		require.NoError(t, err)
		assert.Equal(t, 60, second.Progress)

		last, err := nextEvent(t, reader)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStateSuccess, last.State)
		assert.True(t, last.Terminal())

		_, err = nextEvent(t, reader)
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestStale(t *testing.T) {
	t.Parallel()

	base := events.ProgressEvent{State: domain.TaskStateProcessing, Progress: 40, Message: "copying"}
	assert.True(t, stale(base, base))
	assert.True(t, stale(base, events.ProgressEvent{State: domain.TaskStateProcessing, Progress: 20}))
	assert.False(t, stale(base, events.ProgressEvent{State: domain.TaskStateRetrying, Progress: 40, Attempt: 1}))
	assert.False(t, stale(base, events.ProgressEvent{State: domain.TaskStateFailure, Progress: 0}))
}

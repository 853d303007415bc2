package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docgen/internal/api/shared"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/events"
	"github.com/phrazzld/docgen/internal/platform/logger"
	"github.com/phrazzld/docgen/internal/task"
)

// DefaultKeepAlive is the interval between SSE comment frames on an idle stream.
const DefaultKeepAlive = 15 * time.Second

// GenerationOrchestrator is the part of task.Orchestrator the handler drives.
type GenerationOrchestrator interface {
	Submit(ctx context.Context, req task.SubmitRequest) (uuid.UUID, error)
	GetStatus(ctx context.Context, id uuid.UUID) (domain.TaskSnapshot, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// ProgressSubscriber hands out per-task progress streams.
// events.Broadcaster satisfies it.
type ProgressSubscriber interface {
	Subscribe(taskID uuid.UUID) (<-chan events.ProgressEvent, func())
}

// GenerationHandler handles generation task requests.
type GenerationHandler struct {
	orchestrator GenerationOrchestrator
	progress     ProgressSubscriber
	keepAlive    time.Duration
	logger       *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(
	orchestrator GenerationOrchestrator,
	progress ProgressSubscriber,
	logger *slog.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		orchestrator: orchestrator,
		progress:     progress,
		keepAlive:    DefaultKeepAlive,
		logger:       logger.With("component", "generation_handler"),
	}
}

// Submit handles POST /generations. The task runs asynchronously; the
// response carries its id and where to follow it.
func (h *GenerationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context())

	requesterID, ok := shared.GetRequesterID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Requester not found")
		return
	}

	var req SubmitGenerationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	taskID, err := h.orchestrator.Submit(r.Context(), task.SubmitRequest{
		TemplateID:  req.TemplateID,
		FormData:    req.FormData,
		RequesterID: requesterID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit generation")
		return
	}

	log.Info("generation submitted",
		slog.String("task_id", taskID.String()),
		slog.String("template_id", req.TemplateID.String()))

	base := "/api/generations/" + taskID.String()
	w.Header().Set("Location", base)
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitGenerationResponse{
		TaskID:    taskID,
		StatusURL: base,
		EventsURL: base + "/events",
	})
}

// Status handles GET /generations/{id}.
func (h *GenerationHandler) Status(w http.ResponseWriter, r *http.Request) {
	taskID, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	snap, err := h.orchestrator.GetStatus(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get generation status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snapshotToResponse(snap))
}

// Cancel handles DELETE /generations/{id}. Cancellation is cooperative; the
// task reaches its cancelled state asynchronously unless it was pending.
func (h *GenerationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.orchestrator.Cancel(r.Context(), taskID); err != nil {
		HandleAPIError(w, r, err, "Failed to cancel generation")
		return
	}

	snap, err := h.orchestrator.GetStatus(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get generation status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, snapshotToResponse(snap))
}

// Events handles GET /generations/{id}/events as a Server-Sent Events
// stream. The stream ends after the task's terminal event.
func (h *GenerationHandler) Events(w http.ResponseWriter, r *http.Request) {
	taskID, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}
	log := logger.FromContextOrDefault(r.Context()).With("task_id", taskID.String())

	// Subscribe before reading the status so no transition falls between them.
	ch, unsubscribe := h.progress.Subscribe(taskID)
	defer unsubscribe()

	snap, err := h.orchestrator.GetStatus(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get generation status")
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	initial := events.NewProgressEvent(snap)
	if err := writeEvent(w, rc, initial); err != nil {
		log.Debug("client disconnected", "error", err)
		return
	}
	if initial.Terminal() {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	last := initial

	for {
		select {
		case <-r.Context().Done():
			log.Debug("client closed progress stream")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev, open := <-ch:
			if !open {
				return
			}
			if stale(last, ev) {
				continue
			}
			last = ev
			if err := writeEvent(w, rc, ev); err != nil {
				log.Debug("client disconnected", "error", err)
				return
			}
			if ev.Terminal() {
				return
			}
		}
	}
}

// stale reports whether ev repeats or precedes what the client has already
// seen. The broadcaster replays its last event on subscribe, which usually
// matches the initial snapshot.
func stale(last, ev events.ProgressEvent) bool {
	if ev.Terminal() {
		return false
	}
	if ev.Progress < last.Progress {
		return true
	}
	return ev.State == last.State &&
		ev.Progress == last.Progress &&
		ev.Attempt == last.Attempt &&
		ev.Message == last.Message
}

// writeEvent writes ev as an SSE frame named "progress" and flushes it.
func writeEvent(w http.ResponseWriter, rc *http.ResponseController, ev events.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}

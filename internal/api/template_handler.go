package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/docgen/internal/api/shared"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/platform/logger"
	"github.com/phrazzld/docgen/internal/service"
)

// TemplateHandler handles template management requests.
type TemplateHandler struct {
	templates service.TemplateService
	logger    *slog.Logger
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templates service.TemplateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{
		templates: templates,
		logger:    logger.With("component", "template_handler"),
	}
}

// Create handles POST /templates.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tpl, err := h.templates.Create(r.Context(), req.Name, req.SourceRef)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create template")
		return
	}

	logger.FromContextOrDefault(r.Context()).Info("template created",
		slog.String("template_id", tpl.ID.String()),
		slog.Int("placeholders", len(tpl.Placeholders)))
	shared.RespondWithJSON(w, r, http.StatusCreated, templateToResponse(tpl))
}

// Get handles GET /templates/{id}.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	tpl, err := h.templates.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get template")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, templateToResponse(tpl))
}

// List handles GET /templates with an optional ?status= filter.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.TemplateStatus(r.URL.Query().Get("status"))

	templates, err := h.templates.List(r.Context(), status)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list templates")
		return
	}

	out := make([]TemplateResponse, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, templateToResponse(tpl))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// Sync handles POST /templates/{id}/sync.
func (h *TemplateHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.templates.Sync(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to sync template")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, syncToResponse(res))
}

// Transition handles PUT /templates/{id}/status.
func (h *TemplateHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tpl, err := h.templates.Transition(r.Context(), id, domain.TemplateStatus(req.Status))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to change template status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, templateToResponse(tpl))
}

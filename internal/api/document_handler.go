package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/docgen/internal/api/shared"
	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/service"
)

// DocumentHandler handles generated document requests.
type DocumentHandler struct {
	documents service.DocumentService
	logger    *slog.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documents service.DocumentService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		logger:    logger.With("component", "document_handler"),
	}
}

// Get handles GET /documents/{id}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get document")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, documentToResponse(doc))
}

// ListByTemplate handles GET /templates/{id}/documents.
func (h *DocumentHandler) ListByTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	docs, err := h.documents.ListByTemplate(r.Context(), templateID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list documents")
		return
	}

	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentToResponse(doc))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// Transition handles PUT /documents/{id}/status.
func (h *DocumentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	doc, err := h.documents.Transition(r.Context(), id, domain.DocumentStatus(req.Status))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to change document status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, documentToResponse(doc))
}

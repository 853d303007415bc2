package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/docgen/internal/api"
	apiMiddleware "github.com/phrazzld/docgen/internal/api/middleware"
	"github.com/phrazzld/docgen/internal/api/shared"
	"github.com/rs/cors"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	generationHandler := api.NewGenerationHandler(app.orchestrator, app.broadcaster, app.logger)
	templateHandler := api.NewTemplateHandler(app.templateService, app.logger)
	documentHandler := api.NewDocumentHandler(app.documentService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		// Generation endpoints
		r.Post("/generations", generationHandler.Submit)
		r.Get("/generations/{id}", generationHandler.Status)
		r.Post("/generations/{id}/cancel", generationHandler.Cancel)
		r.Get("/generations/{id}/events", generationHandler.Events)

		// Template endpoints
		r.Post("/templates", templateHandler.Create)
		r.Get("/templates", templateHandler.List)
		r.Get("/templates/{id}", templateHandler.Get)
		r.Post("/templates/{id}/sync", templateHandler.Sync)
		r.Put("/templates/{id}/status", templateHandler.Transition)
		r.Get("/templates/{id}/documents", documentHandler.ListByTemplate)

		// Document endpoints
		r.Get("/documents/{id}", documentHandler.Get)
		r.Put("/documents/{id}/status", documentHandler.Transition)
	})

	r.Handle("/metrics", app.metrics.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
			"status":  "ok",
			"breaker": app.authoring.Breaker().State().String(),
		})
	})

	if len(app.config.Server.CORSOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins:   app.config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	}).Handler(r)
}

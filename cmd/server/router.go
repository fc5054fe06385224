package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fablebot/fable-api/internal/api"
	apiMiddleware "github.com/fablebot/fable-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. The webhook and the worker endpoint each authenticate
// against their own trust root.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	chatHandler := api.NewChatHandler(app.conversation)
	taskHandler := api.NewTaskHandler(app.conversation)

	platformAuth := apiMiddleware.NewAuthMiddleware(app.platformVerifier)
	queueAuth := apiMiddleware.NewAuthMiddleware(app.queueVerifier)

	// Inbound chat platform events
	r.Group(func(r chi.Router) {
		r.Use(platformAuth.Authenticate)
		r.Post("/chat/events", chatHandler.HandleEvent)
	})

	// Background task execution callbacks
	r.Group(func(r chi.Router) {
		r.Use(queueAuth.Authenticate)
		r.Post("/tasks/execute", taskHandler.HandleTask)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}

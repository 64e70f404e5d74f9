package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter serves the extension's origin only. The custom headers
// carry the shared secret and the captured CDS credentials.
func NewRouter(app *App, allowedOrigin string) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{allowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Api-Key", "X-Bearer", "X-Cds-Api-Key"},
	}))

	r.Get("/health", healthHandler)
	r.Post("/events", app.eventsHandler)

	return r
}

package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(instrument(g.metrics))

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.metrics != nil {
		r.Method(http.MethodGet, "/metrics", g.metrics.Handler())
	}

	// Admin endpoints, auth required. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/modules", g.handleGetAllModules())
				r.Get("/save", g.handleExport())
				r.Post("/save/preview", g.handlePreview())
				r.Post("/save/import", g.handleImport())
				r.Post("/memory/recall", g.handleRecall())
				r.Get("/jobs", g.handleListJobs())
				r.Post("/jobs/{name}/run", g.handleRunJob())
			})
		})
	}

	return r
}

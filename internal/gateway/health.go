package gateway

import (
	"net/http"

	"github.com/flemzord/utsuwa/internal/embedding"
	"github.com/flemzord/utsuwa/internal/store"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string            `json:"status"` // "ok" or "degraded"
	Embedding *embedding.Status `json:"embedding,omitempty"`
	Counts    *store.Counts     `json:"counts,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the store answers and the embedding model is not in
// the error state, 503 otherwise. An idle model is healthy: it loads on
// first use.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.embedder != nil {
			st := g.embedder.Status()
			resp.Embedding = &st
			if st.State == embedding.StateError {
				resp.Status = "degraded"
			}
		}

		if g.store != nil {
			counts, err := store.Count(r.Context(), g.store)
			if err != nil {
				g.logger.Warn("gateway: health store check failed", "error", err)
				resp.Status = "degraded"
			} else {
				resp.Counts = &counts
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

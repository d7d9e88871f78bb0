package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/utsuwa/internal/embedding"
	"github.com/flemzord/utsuwa/internal/store"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    int64             `json:"uptime_seconds"`
	Character string            `json:"character,omitempty"`
	Embedding *embedding.Status `json:"embedding,omitempty"`
	Counts    *store.Counts     `json:"counts,omitempty"`
	Jobs      []string          `json:"jobs"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime: int64(g.now().Sub(g.startedAt) / time.Second),
			Jobs:   []string{},
		}

		if g.live != nil {
			resp.Character = g.live.Snapshot().Name
		}
		if g.embedder != nil {
			st := g.embedder.Status()
			resp.Embedding = &st
		}
		if g.store != nil {
			if counts, err := store.Count(r.Context(), g.store); err == nil {
				resp.Counts = &counts
			}
		}
		if g.scheduler != nil {
			resp.Jobs = g.scheduler.Jobs()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

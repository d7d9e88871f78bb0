package gateway

import (
	"errors"
	"net/http"

	"github.com/flemzord/utsuwa/internal/cron"
	"github.com/go-chi/chi/v5"
)

func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.scheduler == nil {
			writeJSON(w, http.StatusOK, []string{})
			return
		}
		writeJSON(w, http.StatusOK, g.scheduler.Jobs())
	}
}

// handleRunJob runs a scheduled job immediately and waits for it.
func (g *Gateway) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.scheduler == nil {
			unavailable(w, "scheduler")
			return
		}
		name := chi.URLParam(r, "name")

		err := g.scheduler.RunNow(r.Context(), name)
		switch {
		case errors.Is(err, cron.ErrUnknownJob):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, cron.ErrJobBusy):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, map[string]string{"job": name, "status": "ok"})
		}
	}
}

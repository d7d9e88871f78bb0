package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/flemzord/utsuwa/internal/memory"
)

const maxRecallBody = 64 << 10

type recallRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type recallResponse struct {
	Results []memory.SimilarFact `json:"results"`
	Prompt  string               `json:"prompt,omitempty"`
}

// handleRecall ranks stored facts against a query. An empty result list
// with status 200 means nothing relevant was found or the embedding model
// is not ready.
func (g *Gateway) handleRecall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.recaller == nil {
			unavailable(w, "memory recall")
			return
		}

		var req recallRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecallBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}
		if req.Limit <= 0 {
			req.Limit = memory.DefaultLimit
		}

		results, err := g.recaller.Recall(r.Context(), req.Query, req.Limit)
		if err != nil {
			g.logger.Error("gateway: recall failed", "error", err)
			writeError(w, http.StatusInternalServerError, "recall failed")
			return
		}

		resp := recallResponse{Results: make([]memory.SimilarFact, 0, len(results))}
		contents := make([]string, 0, len(results))
		for _, sf := range results {
			sf.Fact.Embedding = nil
			resp.Results = append(resp.Results, sf)
			contents = append(contents, sf.Fact.Content)
		}
		resp.Prompt = memory.FormatFacts(contents)
		writeJSON(w, http.StatusOK, resp)
	}
}

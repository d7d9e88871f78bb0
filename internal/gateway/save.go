package gateway

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/flemzord/utsuwa/internal/savefile"
	"github.com/flemzord/utsuwa/internal/security"
)

// handleExport streams a fresh save file as a download.
func (g *Gateway) handleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.codec == nil {
			unavailable(w, "save export")
			return
		}
		sf, err := g.codec.Export(r.Context())
		if err != nil {
			g.logger.Error("gateway: export failed", "error", err)
			writeError(w, http.StatusInternalServerError, "export failed")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": savefile.FileName(g.now()),
		}))
		if _, err := sf.WriteTo(w); err != nil {
			g.logger.Warn("gateway: export write interrupted", "error", err)
		}
	}
}

// handlePreview validates an uploaded save file and summarizes it without
// importing anything.
func (g *Gateway) handlePreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := g.readSaveFile(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, doc.Preview())
	}
}

// handleImport imports an uploaded save file. The mode query parameter
// selects merge (the default) or replace; skip_duplicates=true skips facts
// whose content already exists.
func (g *Gateway) handleImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.migrator == nil {
			unavailable(w, "save import")
			return
		}

		q := r.URL.Query()
		raw := q.Get("mode")
		if raw == "" {
			raw = string(savefile.ModeMerge)
		}
		mode, err := savefile.ParseMode(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var opts savefile.ImportOptions
		if s := q.Get("skip_duplicates"); s != "" {
			if opts.SkipDuplicateFacts, err = strconv.ParseBool(s); err != nil {
				writeError(w, http.StatusBadRequest, "skip_duplicates must be a boolean")
				return
			}
		}

		doc, ok := g.readSaveFile(w, r)
		if !ok {
			return
		}
		res, err := g.migrator.Import(r.Context(), doc, mode, opts)
		if err != nil {
			g.logger.Error("gateway: import failed", "mode", string(mode), "error", err)
			writeError(w, http.StatusInternalServerError, "import failed")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// readSaveFile reads and validates the request body. On failure it writes
// the error response and returns false.
func (g *Gateway) readSaveFile(w http.ResponseWriter, r *http.Request) (*savefile.Document, bool) {
	raw, err := security.ReadJSON(r.Body, g.config.MaxBodyBytes, security.DefaultMaxJSONDepth)
	switch {
	case errors.Is(err, security.ErrDocumentTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, false
	case errors.Is(err, security.ErrJSONTooDeep), errors.Is(err, security.ErrInvalidJSON):
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	case err != nil:
		writeError(w, http.StatusBadRequest, "could not read request body")
		return nil, false
	}

	doc, err := savefile.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return doc, true
}

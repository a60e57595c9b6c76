package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dshills/gocontext-indexd/internal/indexer"
	"github.com/dshills/gocontext-indexd/internal/storage"
	"github.com/dshills/gocontext-indexd/pkg/types"
)

// ErrorsHandler handles GET /api/errors.
type ErrorsHandler struct {
	Indexer *indexer.Indexer
}

type errorsResponse struct {
	Items []types.ErrorRecord `json:"items"`
	Total int                 `json:"total"`
	Limit int                 `json:"limit"`
}

// List returns the recorded indexing errors of ?path= in recording order.
func (h *ErrorsHandler) List(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PATH", "path query parameter is required")
		return
	}
	limit := parseLimit(r)

	records, err := h.Indexer.ProjectErrors(r.Context(), path, limit)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_INDEXED", "Project has not been indexed")
		return
	}
	if err != nil {
		slog.Error("errors list: query", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if records == nil {
		records = []types.ErrorRecord{}
	}
	writeJSON(w, http.StatusOK, errorsResponse{Items: records, Total: len(records), Limit: limit})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dshills/gocontext-indexd/internal/indexer"
)

// BuildsHandler handles the endpoints that start and stop builds.
type BuildsHandler struct {
	Indexer *indexer.Indexer
	// BaseCtx bounds background builds; cancelling it interrupts them
	BaseCtx context.Context
}

type indexRequest struct {
	Path          string `json:"path"`
	IncludeTests  *bool  `json:"include_tests"`
	IncludeVendor *bool  `json:"include_vendor"`
}

// Index handles POST /api/index — starts a background build.
func (h *BuildsHandler) Index(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be a JSON object")
		return
	}
	if req.Path == "" || !filepath.IsAbs(req.Path) {
		writeError(w, http.StatusBadRequest, "INVALID_PATH", "path must be an absolute directory")
		return
	}
	if info, err := os.Stat(req.Path); err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "INVALID_PATH", "path must be an absolute directory")
		return
	}

	scope := h.Indexer.DefaultScope()
	if req.IncludeTests != nil {
		scope.IncludeTests = *req.IncludeTests
	}
	if req.IncludeVendor != nil {
		scope.IncludeVendor = *req.IncludeVendor
	}

	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := h.Indexer.Start(ctx, req.Path, scope); err != nil {
		if errors.Is(err, indexer.ErrIndexingInProgress) {
			writeError(w, http.StatusConflict, "INDEXING_IN_PROGRESS", "A build is already in progress")
			return
		}
		slog.Error("index: start", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start build")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":         "running",
		"path":           req.Path,
		"include_tests":  scope.IncludeTests,
		"include_vendor": scope.IncludeVendor,
	})
}

// Interrupt handles POST /api/interrupt.
func (h *BuildsHandler) Interrupt(w http.ResponseWriter, r *http.Request) {
	switch h.Indexer.Interrupt() {
	case indexer.InterruptNoBuild:
		writeError(w, http.StatusNotFound, "NO_ACTIVE_BUILD", "No build is currently running")
	case indexer.InterruptIgnored:
		writeError(w, http.StatusConflict, "INTERRUPT_IGNORED", "Interrupt ignored while a confirmation dialog is open")
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "interrupting",
		})
	}
}

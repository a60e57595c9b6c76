package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dshills/gocontext-indexd/internal/indexer"
	"github.com/dshills/gocontext-indexd/internal/storage"
)

// Schedule reports the cron state shown by the status endpoint
type Schedule interface {
	CronExpr() string
	NextRunAt() *time.Time
}

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Indexer *indexer.Indexer
	Sched   Schedule
	Version string
}

type statusResponse struct {
	Version   string         `json:"version"`
	Indexing  indexingInfo   `json:"indexing"`
	LastBuild *lastBuildInfo `json:"last_build"`
	Schedule  *scheduleInfo  `json:"schedule,omitempty"`
	Project   *projectInfo   `json:"project,omitempty"`
}

type indexingInfo struct {
	Running      bool     `json:"running"`
	IndexedCount int      `json:"indexed_count"`
	TotalCount   int      `json:"total_count"`
	Percent      int      `json:"percent"`
	InFlight     []string `json:"in_flight,omitempty"`
}

type lastBuildInfo struct {
	FilesQueued      int   `json:"files_queued"`
	BundlesMerged    int   `json:"bundles_merged"`
	SymbolsExtracted int   `json:"symbols_extracted"`
	ErrorsRecorded   int   `json:"errors_recorded"`
	CrashedFiles     int   `json:"crashed_files"`
	Interrupted      bool  `json:"interrupted"`
	DurationMS       int64 `json:"duration_ms"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	NextRunAt *time.Time `json:"next_run_at"`
}

type projectInfo struct {
	RootPath      string     `json:"root_path"`
	ModuleName    string     `json:"module_name"`
	Indexed       bool       `json:"indexed"`
	FilesCount    int        `json:"files_count"`
	SymbolsCount  int        `json:"symbols_count"`
	ErrorsCount   int        `json:"errors_count"`
	FatalCount    int        `json:"fatal_count"`
	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty"`
	BuildStatus   string     `json:"build_status,omitempty"`
}

// ServeHTTP returns the indexer status as JSON. With ?path= it also reports
// the stored statistics of that project.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tracker := h.Indexer.Tracker()
	snap := tracker.Snapshot()
	resp := statusResponse{
		Version: h.Version,
		Indexing: indexingInfo{
			Running:      tracker.Indexing(),
			IndexedCount: snap.IndexedCount,
			TotalCount:   snap.TotalCount,
			Percent:      snap.Percent,
			InFlight:     snap.InFlight,
		},
	}
	if last := h.Indexer.LastStatistics(); last != nil {
		resp.LastBuild = &lastBuildInfo{
			FilesQueued:      last.FilesQueued,
			BundlesMerged:    last.BundlesMerged,
			SymbolsExtracted: last.SymbolsExtracted,
			ErrorsRecorded:   last.ErrorsRecorded,
			CrashedFiles:     last.CrashedFiles,
			Interrupted:      last.Interrupted,
			DurationMS:       last.Duration.Milliseconds(),
		}
	}
	if h.Sched != nil && h.Sched.CronExpr() != "" {
		resp.Schedule = &scheduleInfo{Cron: h.Sched.CronExpr(), NextRunAt: h.Sched.NextRunAt()}
	}

	if path := r.URL.Query().Get("path"); path != "" {
		project, err := h.project(r, path)
		if err != nil {
			slog.Error("status: query project", "path", path, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to query project status")
			return
		}
		resp.Project = project
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) project(r *http.Request, path string) (*projectInfo, error) {
	status, err := h.Indexer.ProjectStatus(r.Context(), path)
	if errors.Is(err, storage.ErrNotFound) {
		return &projectInfo{RootPath: path, Indexed: false}, nil
	}
	if err != nil {
		return nil, err
	}
	info := &projectInfo{
		RootPath:     status.Project.RootPath,
		ModuleName:   status.Project.ModuleName,
		Indexed:      true,
		FilesCount:   status.FilesCount,
		SymbolsCount: status.SymbolsCount,
		ErrorsCount:  status.ErrorsCount,
		FatalCount:   status.FatalCount,
	}
	if !status.Project.LastIndexedAt.IsZero() {
		t := status.Project.LastIndexedAt.UTC()
		info.LastIndexedAt = &t
	}
	if status.LastBuild != nil {
		info.BuildStatus = string(status.LastBuild.Status)
	}
	return info, nil
}

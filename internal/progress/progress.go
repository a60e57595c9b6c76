// Package progress tracks the progress publications of the running build
// for the MCP and HTTP surfaces.
package progress

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// Tracker keeps the last progress publication. It also owns the modal flag
// that gates cooperative interrupts: while a caller holds a modal
// confirmation open, interrupt requests are ignored.
type Tracker struct {
	logger *slog.Logger

	mu          sync.RWMutex
	current     types.Progress
	lastPercent int

	indexing atomic.Bool
	modals   atomic.Int32
}

// NewTracker creates an idle tracker
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{logger: logger, lastPercent: -1}
}

// UpdateIndexingProgress records a publication and logs percent changes
func (t *Tracker) UpdateIndexingProgress(p types.Progress) {
	t.mu.Lock()
	t.current = p
	t.current.InFlight = append([]string(nil), p.InFlight...)
	changed := p.Percent != t.lastPercent
	t.lastPercent = p.Percent
	t.mu.Unlock()

	if changed {
		t.logger.Info("indexing progress",
			"percent", p.Percent,
			"indexed", p.IndexedCount,
			"total", p.TotalCount)
	}
	if len(p.InFlight) > 0 {
		t.logger.Debug("indexing files", "paths", p.InFlight, "queued", p.FilesQueued)
	}
}

// Snapshot returns the last publication
func (t *Tracker) Snapshot() types.Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := t.current
	snap.InFlight = append([]string(nil), t.current.InFlight...)
	return snap
}

// Begin marks a build as running and clears the previous publication
func (t *Tracker) Begin() {
	t.mu.Lock()
	t.current = types.Progress{}
	t.lastPercent = -1
	t.mu.Unlock()
	t.indexing.Store(true)
}

// End marks the build as finished
func (t *Tracker) End() {
	t.indexing.Store(false)
}

// Indexing reports whether a build is running
func (t *Tracker) Indexing() bool {
	return t.indexing.Load()
}

// OpenModal records that a blocking confirmation is showing; the returned
// func closes it
func (t *Tracker) OpenModal() (closeModal func()) {
	t.modals.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { t.modals.Add(-1) })
	}
}

// ModalDialogsHidden reports whether no modal is open
func (t *Tracker) ModalDialogsHidden() bool {
	return t.modals.Load() == 0
}

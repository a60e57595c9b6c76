package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dshills/gocontext-indexd/internal/indexer"
)

// Scheduler wraps robfig/cron and tracks the next scheduled rebuild.
type Scheduler struct {
	mu       sync.RWMutex
	c        *cron.Cron
	entryID  cron.EntryID
	cronExpr string
	logger   *slog.Logger
}

// New creates a stopped Scheduler. Call Start to activate it.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		c:      cron.New(),
		logger: logger,
	}
}

// SetJob replaces the current cron job with the given expression and callback.
// If the scheduler is already running, the new job takes effect immediately.
func (s *Scheduler) SetJob(expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.c.AddFunc(expr, fn)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if s.entryID != 0 {
		s.c.Remove(s.entryID)
	}
	s.entryID = id
	s.cronExpr = expr
	s.logger.Info("scheduler: job set", "cron", expr)
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// NextRunAt returns the next scheduled time, or nil if no job is set or the
// scheduler is not running.
func (s *Scheduler) NextRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}
	entry := s.c.Entry(s.entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}

// CronExpr returns the current cron expression.
func (s *Scheduler) CronExpr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cronExpr
}

// Builder runs one build over a project root
type Builder interface {
	IndexProject(ctx context.Context, rootPath string) (*indexer.Statistics, error)
}

// RebuildRoots returns a job that rebuilds every root in order. A root whose
// build collides with a running one is skipped; a done ctx stops the job.
func RebuildRoots(ctx context.Context, b Builder, roots []string, logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	return func() {
		for _, root := range roots {
			if ctx.Err() != nil {
				return
			}
			stats, err := b.IndexProject(ctx, root)
			switch {
			case errors.Is(err, indexer.ErrIndexingInProgress):
				logger.Info("scheduler: build skipped, another build is running", "root", root)
			case err != nil:
				logger.Error("scheduler: build failed", "root", root, "error", err)
			default:
				logger.Info("scheduler: build finished",
					"root", root,
					"bundles", stats.BundlesMerged,
					"interrupted", stats.Interrupted,
					"duration", stats.Duration)
			}
		}
	}
}

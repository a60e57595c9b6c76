package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/gocontext-indexd/internal/ipc"
	"github.com/dshills/gocontext-indexd/pkg/types"
)

const (
	// DefaultBacklogLimit is the number of bundles a worker lets pile up in its
	// own result channel before it waits for the coordinator
	DefaultBacklogLimit = 2
	// DefaultPollInterval is how often a throttled worker re-checks its backlog
	DefaultPollInterval = 10 * time.Millisecond
)

// Executor indexes a single work unit
type Executor interface {
	Index(ctx context.Context, unit types.WorkUnit) (*types.ResultBundle, error)
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, unit types.WorkUnit) (*types.ResultBundle, error)

// Index calls f(ctx, unit)
func (f ExecutorFunc) Index(ctx context.Context, unit types.WorkUnit) (*types.ResultBundle, error) {
	return f(ctx, unit)
}

// Loop is the processing loop shared by both worker variants
type Loop struct {
	Slot      int
	Namespace ipc.Namespace
	Executor  Executor

	BacklogLimit int
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Work claims and processes units until the queue is observed empty. It
// returns early only when ctx is cancelled or a channel operation fails.
func (l *Loop) Work(ctx context.Context) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	results, err := l.Namespace.Results(l.Slot)
	if err != nil {
		return err
	}
	queue := l.Namespace.Queue()
	status := l.Namespace.Status()

	processed := 0
	for ctx.Err() == nil {
		unit, ok, err := queue.Pop()
		if err != nil {
			return fmt.Errorf("slot %d: failed to claim work unit: %w", l.Slot, err)
		}
		if !ok {
			break
		}

		if err := status.StartUnit(l.Slot, unit.SourcePath); err != nil {
			return fmt.Errorf("slot %d: failed to record start of %s: %w", l.Slot, unit.SourcePath, err)
		}

		bundle := l.execute(ctx, unit)

		l.waitForBacklog(ctx, queue, results)
		if err := results.Push(bundle); err != nil {
			return fmt.Errorf("slot %d: failed to push result of %s: %w", l.Slot, unit.SourcePath, err)
		}
		if err := status.FinishUnit(l.Slot); err != nil {
			return fmt.Errorf("slot %d: failed to record finish of %s: %w", l.Slot, unit.SourcePath, err)
		}
		processed++
	}

	logger.Debug("worker loop finished", "slot", l.Slot, "processed", processed)
	return nil
}

// execute runs the executor; a failure becomes a fatal error record so the
// unit is still accounted for
func (l *Loop) execute(ctx context.Context, unit types.WorkUnit) *types.ResultBundle {
	bundle, err := l.Executor.Index(ctx, unit)
	if err != nil {
		bundle = types.NewResultBundle(unit)
		bundle.AddError(types.ErrorRecord{
			Message:         err.Error(),
			FilePath:        unit.SourcePath,
			Line:            1,
			Column:          1,
			TranslationUnit: unit.SourcePath,
			Fatal:           true,
			Indexed:         false,
		})
		return bundle
	}
	if bundle == nil {
		bundle = types.NewResultBundle(unit)
	}
	if len(bundle.SourcePaths) == 0 {
		bundle.SourcePaths = []string{unit.SourcePath}
	}
	return bundle
}

// waitForBacklog holds a finished bundle back while the coordinator has not
// caught up with this slot. It never waits once the queue is empty.
func (l *Loop) waitForBacklog(ctx context.Context, queue ipc.WorkQueue, results ipc.ResultChannel) {
	limit := l.BacklogLimit
	if limit <= 0 {
		limit = DefaultBacklogLimit
	}
	poll := l.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	for ctx.Err() == nil {
		buffered, err := results.Len()
		if err != nil || buffered <= limit {
			return
		}
		pending, err := queue.Len()
		if err != nil || pending == 0 {
			return
		}
		select {
		case <-ctx.Done():
		case <-time.After(poll):
		}
	}
}

package buildindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dshills/gocontext-indexd/internal/blackboard"
	"github.com/dshills/gocontext-indexd/internal/ipc"
	"github.com/dshills/gocontext-indexd/internal/task"
	"github.com/dshills/gocontext-indexd/internal/worker"
	"github.com/dshills/gocontext-indexd/pkg/types"
)

// ProcessName is the file name of the worker executable, looked up in the
// application directory
const ProcessName = "gocontext-indexer"

// CrashedUnitMessage is the error message recorded for a unit that crashed its worker
const CrashedUnitMessage = "Indexing of this file aborted abnormally. Please check if the " +
	"source file is valid Go and that the build configuration of the project is complete."

// CommandSource provides the batch of work units to index
type CommandSource interface {
	Commands() []types.WorkUnit
	Len() int
}

// Sink receives result bundles for merging
type Sink interface {
	Insert(bundle *types.ResultBundle)
	PendingCount() int
}

// Progress receives progress publications and guards the cooperative interrupt
type Progress interface {
	UpdateIndexingProgress(p types.Progress)
	ModalDialogsHidden() bool
}

// Launcher spawns worker processes and can kill all of them
type Launcher interface {
	worker.Launcher
	KillAll() int
}

// Options configures a Task
type Options struct {
	ProcessCount int
	MultiProcess bool

	// Factory creates the namespace; workers in process mode must be able to
	// open it by id, so it has to be an ipc.SQLiteFactory there
	Factory     ipc.Factory
	NamespaceID string

	// Executor indexes units in thread mode
	Executor worker.Executor

	// Process mode
	Launcher     Launcher
	AppPath      string
	UserDataPath string
	LogFile      string

	Tuning Tuning
	Logger *slog.Logger
}

// Task is the build-index coordinator. A Task runs one batch; it cannot be
// reused.
type Task struct {
	opts     Options
	tuning   Tuning
	logger   *slog.Logger
	source   CommandSource
	sink     Sink
	progress Progress
	board    *blackboard.Blackboard

	ns      ipc.Namespace
	queue   ipc.WorkQueue
	status  ipc.StatusChannel
	results []ipc.ResultChannel
	pool    *worker.Pool
	cancel  context.CancelFunc

	interrupted   atomic.Bool
	lastQueueSize int
	filesQueued   int
	crashed       []string
}

var _ task.Task = (*Task)(nil)

// New creates a Task over source, delivering results to sink
func New(source CommandSource, sink Sink, progress Progress, board *blackboard.Blackboard, opts Options) *Task {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ProcessCount < 1 {
		opts.ProcessCount = 1
	}
	if opts.NamespaceID == "" {
		opts.NamespaceID = ipc.NewNamespaceID()
	}
	if opts.Factory == nil {
		opts.Factory = ipc.NewMemoryFactory()
	}
	return &Task{
		opts:     opts,
		tuning:   opts.Tuning.WithDefaults(),
		logger:   logger.With("namespace", opts.NamespaceID),
		source:   source,
		sink:     sink,
		progress: progress,
		board:    board,
	}
}

// NamespaceID returns the id workers use to open the build's channels
func (t *Task) NamespaceID() string { return t.opts.NamespaceID }

// Interrupted reports whether an interrupt has been requested
func (t *Task) Interrupted() bool { return t.interrupted.Load() }

// Crashed returns the paths reported as crashed by Exit
func (t *Task) Crashed() []string { return append([]string(nil), t.crashed...) }

// LiveWorkers returns the number of workers still running
func (t *Task) LiveWorkers() int {
	if t.pool == nil {
		return 0
	}
	return t.pool.Alive()
}

// Enter moves the batch into the shared queue and starts the workers
func (t *Task) Enter(ctx context.Context) error {
	if t.opts.MultiProcess && t.opts.Launcher == nil {
		return errors.New("multi-process indexing requires a launcher")
	}
	if !t.opts.MultiProcess && t.opts.Executor == nil {
		return errors.New("in-process indexing requires an executor")
	}

	t.filesQueued = 0
	t.publish(nil)
	t.board.Set(blackboard.KeyIndexerCount, t.opts.ProcessCount)

	ns, err := t.opts.Factory.Create(t.opts.NamespaceID)
	if err != nil {
		return fmt.Errorf("failed to create namespace: %w", err)
	}
	t.ns = ns
	t.queue = ns.Queue()
	t.status = ns.Status()

	t.results = make([]ipc.ResultChannel, 0, t.opts.ProcessCount)
	for slot := 1; slot <= t.opts.ProcessCount; slot++ {
		rc, err := ns.Results(slot)
		if err != nil {
			t.closeNamespace()
			return err
		}
		t.results = append(t.results, rc)
	}

	if err := t.queue.Push(t.source.Commands()); err != nil {
		t.closeNamespace()
		return fmt.Errorf("failed to enqueue work units: %w", err)
	}
	t.lastQueueSize, _ = t.queue.Len()

	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.pool = worker.NewPool(t.logger)
	for slot := 1; slot <= t.opts.ProcessCount; slot++ {
		t.pool.Start(wctx, t.newWorker(), slot)
	}

	t.logger.Info("build started",
		"units", t.lastQueueSize,
		"workers", t.opts.ProcessCount,
		"multi_process", t.opts.MultiProcess)
	return nil
}

func (t *Task) newWorker() worker.Worker {
	if t.opts.MultiProcess {
		return &worker.OutOfProcessWorker{
			Launcher:       t.opts.Launcher,
			ExecutablePath: filepath.Join(t.opts.AppPath, ProcessName),
			NamespaceID:    t.opts.NamespaceID,
			AppPath:        t.opts.AppPath,
			UserDataPath:   t.opts.UserDataPath,
			LogFile:        t.opts.LogFile,
			Status:         t.status,
			Interrupt:      &t.interrupted,
			Logger:         t.logger,
		}
	}
	return &worker.InProcessWorker{
		Factory:      t.opts.Factory,
		NamespaceID:  t.opts.NamespaceID,
		Executor:     t.opts.Executor,
		BacklogLimit: t.tuning.WorkerBacklog,
		PollInterval: t.tuning.WorkerPoll,
		Interrupt:    &t.interrupted,
		Logger:       t.logger,
	}
}

// Update polls the workers once. It returns StateFailure when the queue is
// empty and no worker is alive, or when an interrupt has been requested.
func (t *Task) Update(ctx context.Context) task.State {
	alive := t.pool.Alive()

	size, err := t.queue.Len()
	if err != nil {
		t.logger.Error("failed to read queue size", "error", err)
		size = t.lastQueueSize
	}
	if size != t.lastQueueSize {
		inFlight, err := t.status.InFlight()
		if err != nil {
			t.logger.Error("failed to read in-flight units", "error", err)
		}
		if len(inFlight) > 0 {
			t.publish(inFlight)
		}
		t.lastQueueSize = size
	}

	if size == 0 && alive == 0 {
		return task.StateFailure
	}
	if t.interrupted.Load() {
		t.board.Set(blackboard.KeyInterruptedIndexing, true)
		if err := t.queue.Clear(); err != nil {
			t.logger.Error("failed to clear work queue", "error", err)
		}
		t.lastQueueSize = 0
		return task.StateFailure
	}

	if t.drain() {
		t.publish(nil)
	}

	time.Sleep(t.tuning.TickInterval)
	return task.StateRunning
}

// Exit joins every worker, drains the remaining bundles and reports crashed
// units to the sink
func (t *Task) Exit(ctx context.Context) {
	if t.pool != nil {
		if err := t.pool.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Warn("worker pool finished with error", "error", err)
		}
	}
	if t.cancel != nil {
		t.cancel()
	}

	if t.status != nil {
		for t.drain() {
		}

		crashed, err := t.status.Crashed()
		if err != nil {
			t.logger.Error("failed to read crashed units", "error", err)
		}
		if len(crashed) > 0 {
			bundle := &types.ResultBundle{}
			for _, path := range crashed {
				bundle.SourcePaths = append(bundle.SourcePaths, path)
				bundle.AddError(types.ErrorRecord{
					Message:         CrashedUnitMessage,
					FilePath:        path,
					Line:            1,
					Column:          1,
					TranslationUnit: path,
					Fatal:           true,
					Indexed:         true,
				})
				t.logger.Info("crashed translation unit", "path", path)
			}
			t.sink.Insert(bundle)
		}
		t.crashed = crashed
	}

	t.closeNamespace()
	t.board.Set(blackboard.KeyIndexerCount, 0)
}

// Reset does nothing; a new Task is needed for a new batch
func (t *Task) Reset() {}

// Terminate flags the interrupt and kills every worker process
func (t *Task) Terminate() {
	t.interrupted.Store(true)
	if t.pool != nil {
		t.pool.StopAll()
	}
	if t.opts.Launcher != nil {
		if n := t.opts.Launcher.KillAll(); n > 0 {
			t.logger.Info("killed indexer processes", "count", n)
		}
	}
}

// OnInterruptRequested flags a cooperative interrupt, honoured on the next
// Update, unless a modal dialog is showing
func (t *Task) OnInterruptRequested() {
	if t.progress != nil && !t.progress.ModalDialogsHidden() {
		t.logger.Debug("interrupt ignored while a modal dialog is shown")
		return
	}
	t.Interrupt()
}

// Interrupt flags a cooperative interrupt unconditionally
func (t *Task) Interrupt() {
	t.interrupted.Store(true)
}

func (t *Task) publish(inFlight []string) {
	t.filesQueued += len(inFlight)
	counts := t.board.Ints(blackboard.KeyIndexedSourceFileCount, blackboard.KeySourceFileCount)
	if t.progress == nil {
		return
	}
	t.progress.UpdateIndexingProgress(types.Progress{
		FilesQueued:  t.filesQueued,
		IndexedCount: counts[0],
		TotalCount:   counts[1],
		Percent:      types.ComputePercent(counts[0], counts[1]),
		InFlight:     inFlight,
		UpdatedAt:    time.Now(),
	})
}

func (t *Task) closeNamespace() {
	if t.ns == nil {
		return
	}
	if err := t.ns.Close(); err != nil {
		t.logger.Warn("failed to close namespace", "error", err)
	}
	if err := t.opts.Factory.Remove(t.opts.NamespaceID); err != nil {
		t.logger.Warn("failed to remove namespace", "error", err)
	}
	t.ns = nil
}

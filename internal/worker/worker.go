package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dshills/gocontext-indexd/internal/ipc"
	"github.com/dshills/gocontext-indexd/internal/proc"
)

var (
	// ErrExecutableMissing is returned when the worker executable cannot be located
	ErrExecutableMissing = errors.New("worker executable missing")
	// ErrWorkerPanicked is returned by an in-process worker whose executor panicked
	ErrWorkerPanicked = errors.New("worker panicked")
)

// Worker is a unit of concurrent execution bound to one slot. Run blocks
// until the worker has stopped.
type Worker interface {
	Run(ctx context.Context, slot int) error
}

// InProcessWorker runs the processing loop on a goroutine of the calling
// process. It opens its own namespace handles by id.
type InProcessWorker struct {
	Factory      ipc.Factory
	NamespaceID  string
	Executor     Executor
	BacklogLimit int
	PollInterval time.Duration

	// Interrupt is shared with the coordinator and set when the worker panics
	Interrupt *atomic.Bool
	Logger    *slog.Logger
}

// Run processes units until the queue is empty. A panic in the executor is
// recovered, the unit in flight is recorded as crashed and the interrupt is
// raised; the worker does not restart.
func (w *InProcessWorker) Run(ctx context.Context, slot int) (err error) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ns, err := w.Factory.Open(w.NamespaceID)
	if err != nil {
		return fmt.Errorf("slot %d: %w", slot, err)
	}
	defer func() { _ = ns.Close() }()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logger.Error("in-process worker panicked", "slot", slot, "panic", r)
		if mErr := ns.Status().MarkCrashed(slot); mErr != nil {
			logger.Error("failed to record crashed unit", "slot", slot, "error", mErr)
		}
		if w.Interrupt != nil {
			w.Interrupt.Store(true)
		}
		err = fmt.Errorf("%w: slot %d: %v", ErrWorkerPanicked, slot, r)
	}()

	loop := &Loop{
		Slot:         slot,
		Namespace:    ns,
		Executor:     w.Executor,
		BacklogLimit: w.BacklogLimit,
		PollInterval: w.PollInterval,
		Logger:       logger,
	}
	return loop.Work(ctx)
}

// Launcher runs an external executable and blocks until it exits
type Launcher interface {
	Spawn(ctx context.Context, path string, args []string) (int, error)
}

// OutOfProcessWorker supervises the worker executable for one slot,
// relaunching it after every abnormal exit until it succeeds or an interrupt
// is requested.
type OutOfProcessWorker struct {
	Launcher       Launcher
	ExecutablePath string
	NamespaceID    string
	AppPath        string
	UserDataPath   string
	LogFile        string

	// Status is the coordinator's handle, used to record crashed units
	Status ipc.StatusChannel
	// Interrupt is shared with the coordinator
	Interrupt *atomic.Bool
	Logger    *slog.Logger
}

// Args returns the command line passed to the executable for slot
func (w *OutOfProcessWorker) Args(slot int) []string {
	args := []string{strconv.Itoa(slot), w.NamespaceID, w.AppPath, w.UserDataPath}
	if w.LogFile != "" {
		args = append(args, w.LogFile)
	}
	return args
}

func (w *OutOfProcessWorker) interrupted() bool {
	return w.Interrupt != nil && w.Interrupt.Load()
}

// Run launches the executable and supervises it
func (w *OutOfProcessWorker) Run(ctx context.Context, slot int) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path, err := exec.LookPath(w.ExecutablePath)
	if err != nil {
		if w.Interrupt != nil {
			w.Interrupt.Store(true)
		}
		logger.Error("cannot start indexer process because executable is missing",
			"path", w.ExecutablePath,
			"error", err)
		return fmt.Errorf("%w: %s", ErrExecutableMissing, w.ExecutablePath)
	}

	args := w.Args(slot)
	for attempt := 0; ; attempt++ {
		if attempt > 0 && (w.interrupted() || ctx.Err() != nil) {
			return nil
		}
		code, err := w.Launcher.Spawn(ctx, path, args)
		if errors.Is(err, proc.ErrStopped) {
			logger.Info("indexer process not relaunched after termination", "slot", slot)
			return nil
		}
		if err != nil {
			if w.Interrupt != nil {
				w.Interrupt.Store(true)
			}
			logger.Error("failed to launch indexer process", "slot", slot, "error", err)
			return fmt.Errorf("slot %d: failed to launch indexer process: %w", slot, err)
		}
		logger.Info("indexer process returned", "slot", slot, "exit_code", code)
		if code == 0 {
			return nil
		}

		if w.Status != nil {
			if err := w.Status.MarkCrashed(slot); err != nil {
				logger.Error("failed to record crashed unit", "slot", slot, "error", err)
			}
		}
	}
}

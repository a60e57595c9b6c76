package worker

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Handle refers to one started worker
type Handle struct {
	slot   int
	cancel context.CancelFunc
	done   chan struct{}
}

// Slot returns the worker's slot id
func (h *Handle) Slot() int { return h.slot }

// IsAlive reports whether the worker is still running
func (h *Handle) IsAlive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// RequestStop cancels the worker's context. Workers stop between units.
func (h *Handle) RequestStop() { h.cancel() }

// Pool owns a set of workers and counts the live ones
type Pool struct {
	group  errgroup.Group
	logger *slog.Logger

	mu      sync.Mutex
	alive   int
	handles []*Handle
}

// NewPool creates an empty pool
func NewPool(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{logger: logger}
}

// Start runs w for slot on a new goroutine. The live counter is incremented
// before Start returns.
func (p *Pool) Start(ctx context.Context, w Worker, slot int) *Handle {
	wctx, cancel := context.WithCancel(ctx)
	h := &Handle{slot: slot, cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	p.alive++
	p.handles = append(p.handles, h)
	p.mu.Unlock()

	p.group.Go(func() error {
		defer close(h.done)
		defer cancel()
		defer p.exited()

		err := w.Run(wctx, slot)
		if err != nil {
			p.logger.Warn("worker exited with error", "slot", slot, "error", err)
		}
		return err
	})
	return h
}

func (p *Pool) exited() {
	p.mu.Lock()
	p.alive--
	p.mu.Unlock()
}

// Alive returns the number of workers still running
func (p *Pool) Alive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// Handles returns the started workers
func (p *Pool) Handles() []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Handle(nil), p.handles...)
}

// StopAll requests every worker to stop
func (p *Pool) StopAll() {
	for _, h := range p.Handles() {
		h.RequestStop()
	}
}

// Wait blocks until every started worker has returned and reports the
// first worker error
func (p *Pool) Wait() error {
	return p.group.Wait()
}

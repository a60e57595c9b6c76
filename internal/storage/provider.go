package storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// MergeStats summarizes what a Provider has written
type MergeStats struct {
	BundlesMerged int
	FilesMerged   int
	SymbolsMerged int
	ErrorsMerged  int
	FailedMerges  int
}

// Provider accepts result bundles from the coordinator and merges them into
// a project in the background. Insert never blocks on the database.
type Provider struct {
	store     Storage
	projectID int64
	logger    *slog.Logger

	mu      sync.Mutex
	pending []*types.ResultBundle
	notify  chan struct{}

	// merging is 1 while a popped bundle is being written
	merging atomic.Int32

	statsMu sync.Mutex
	stats   MergeStats
}

// NewProvider creates a provider merging into projectID
func NewProvider(store Storage, projectID int64, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:     store,
		projectID: projectID,
		logger:    logger,
		notify:    make(chan struct{}, 1),
	}
}

// Insert queues bundle for merging
func (p *Provider) Insert(bundle *types.ResultBundle) {
	if bundle == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, bundle)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// PendingCount returns the number of bundles not yet merged
func (p *Provider) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) + int(p.merging.Load())
}

// Run merges bundles as they arrive until ctx is done
func (p *Provider) Run(ctx context.Context) error {
	for {
		if p.mergeNext(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-p.notify:
		}
	}
}

// Flush merges everything still pending
func (p *Provider) Flush(ctx context.Context) {
	for p.mergeNext(ctx) {
	}
}

// Stats returns a snapshot of merge counters
func (p *Provider) Stats() MergeStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

func (p *Provider) pop() *types.ResultBundle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil
	}
	b := p.pending[0]
	p.pending[0] = nil
	p.pending = p.pending[1:]
	p.merging.Store(1)
	return b
}

// mergeNext merges one bundle and reports whether there was one
func (p *Provider) mergeNext(ctx context.Context) bool {
	b := p.pop()
	if b == nil {
		return false
	}
	defer p.merging.Store(0)

	err := MergeBundle(context.WithoutCancel(ctx), p.store, p.projectID, b)

	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	if err != nil {
		p.stats.FailedMerges++
		p.logger.Error("failed to merge result bundle",
			"sources", b.SourcePaths,
			"error", err)
		return true
	}
	p.stats.BundlesMerged++
	p.stats.FilesMerged += len(b.Files)
	p.stats.SymbolsMerged += b.SymbolCount()
	p.stats.ErrorsMerged += len(b.Errors)
	return true
}

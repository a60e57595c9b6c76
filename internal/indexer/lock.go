package indexer

import (
	"errors"
	"sync/atomic"
)

// ErrIndexingInProgress is returned when a build is requested while another one runs
var ErrIndexingInProgress = errors.New("indexing already in progress")

// IndexLock allows a single active build without blocking callers
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire takes the lock if it is free
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Acquire takes the lock or returns ErrIndexingInProgress
func (l *IndexLock) Acquire() error {
	if !l.TryAcquire() {
		return ErrIndexingInProgress
	}
	return nil
}

// Release releases the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether the lock is taken
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}

// Package ipc implements the channels shared between the build coordinator and
// its workers: the work queue, the status channel and one result channel per
// worker slot.
//
// Two namespace implementations exist. MemoryNamespace is used when workers run
// as goroutines of the coordinating process. SQLiteNamespace keeps the same
// structures in a SQLite database file so that separate worker processes can
// open them by namespace id.
package ipc

import (
	"errors"
	"fmt"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// CoordinatorSlot is the slot id reserved for the coordinating process
const CoordinatorSlot = 0

// ErrInvalidSlot is returned for slot ids outside 1..N
var ErrInvalidSlot = errors.New("invalid worker slot")

// WorkQueue is the ordered collection of pending work units
type WorkQueue interface {
	// Push appends units to the queue
	Push(units []types.WorkUnit) error
	// Pop removes and returns the next unit; ok is false when the queue is empty
	Pop() (unit types.WorkUnit, ok bool, err error)
	// Len returns the number of pending units without consuming any
	Len() (int, error)
	// Clear drops every pending unit
	Clear() error
}

// StatusChannel records per-slot liveness: the path each slot is processing,
// the FIFO of slots that finished a unit and the paths that crashed a worker.
type StatusChannel interface {
	// StartUnit records path as in flight for slot. A path still recorded for
	// the slot belongs to a previous incarnation that died and is moved to the
	// crashed list first.
	StartUnit(slot int, path string) error
	// FinishUnit clears the slot's in-flight path and appends slot to the finished FIFO
	FinishUnit(slot int) error
	// MarkCrashed moves the slot's in-flight path, if any, to the crashed list
	MarkCrashed(slot int) error
	// InFlight returns every path currently being processed
	InFlight() ([]string, error)
	// NextFinished pops the next finished slot id; ok is false when none is ready
	NextFinished() (slot int, ok bool, err error)
	// Crashed returns the paths that crashed a worker
	Crashed() ([]string, error)
}

// ResultChannel is a FIFO of completed bundles produced by one worker slot
type ResultChannel interface {
	Push(bundle *types.ResultBundle) error
	Pop() (*types.ResultBundle, bool, error)
	Len() (int, error)
}

// Namespace yields the channel handles of one build
type Namespace interface {
	ID() string
	Queue() WorkQueue
	Status() StatusChannel
	// Results returns the result channel of slot (1..N)
	Results(slot int) (ResultChannel, error)
	Close() error
}

func validateSlot(slot int) error {
	if slot <= CoordinatorSlot {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

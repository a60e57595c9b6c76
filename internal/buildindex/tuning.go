package buildindex

import "time"

// Tuning holds the cadence and threshold constants of a build
type Tuning struct {
	// TickInterval is slept at the end of every running Update
	TickInterval time.Duration
	// BackpressureSleep is slept by a drain call that refuses to pop
	BackpressureSleep time.Duration
	// DrainBudget caps the wall-clock time of one drain call
	DrainBudget time.Duration
	// BackpressureThreshold is the sink pending count above which draining pauses
	BackpressureThreshold int
	// WorkerBacklog is the number of bundles a worker buffers before waiting
	WorkerBacklog int
	// WorkerPoll is the interval a throttled worker re-checks its backlog
	WorkerPoll time.Duration
}

// DefaultTuning returns the standard constants
func DefaultTuning() Tuning {
	return Tuning{
		TickInterval:          50 * time.Millisecond,
		BackpressureSleep:     100 * time.Millisecond,
		DrainBudget:           500 * time.Millisecond,
		BackpressureThreshold: 10,
		WorkerBacklog:         2,
		WorkerPoll:            10 * time.Millisecond,
	}
}

// WithDefaults fills zero fields from DefaultTuning
func (t Tuning) WithDefaults() Tuning {
	d := DefaultTuning()
	if t.TickInterval <= 0 {
		t.TickInterval = d.TickInterval
	}
	if t.BackpressureSleep <= 0 {
		t.BackpressureSleep = d.BackpressureSleep
	}
	if t.DrainBudget <= 0 {
		t.DrainBudget = d.DrainBudget
	}
	if t.BackpressureThreshold <= 0 {
		t.BackpressureThreshold = d.BackpressureThreshold
	}
	if t.WorkerBacklog <= 0 {
		t.WorkerBacklog = d.WorkerBacklog
	}
	if t.WorkerPoll <= 0 {
		t.WorkerPoll = d.WorkerPoll
	}
	return t
}

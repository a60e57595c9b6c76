// Package task drives long-running tasks through their lifecycle.
package task

import (
	"context"
	"time"
)

// State is the result of one Update call
type State int

const (
	// StateRunning asks the sequencer to call Update again
	StateRunning State = iota
	// StateFailure ends the task. Tasks without a distinct success state use
	// it for normal completion too.
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Task is a unit of work driven by Run
type Task interface {
	Enter(ctx context.Context) error
	Update(ctx context.Context) State
	Exit(ctx context.Context)
	Reset()
	Terminate()
}

// Interruptible tasks accept a cooperative interrupt request
type Interruptible interface {
	Interrupt()
}

// Run enters t, calls Update until it stops returning StateRunning and then
// exits it. Cancelling ctx interrupts t cooperatively when it supports that;
// Run still waits for Update to end and for Exit. The interval is slept
// between updates and may be zero when Update paces itself.
func Run(ctx context.Context, t Task, interval time.Duration) error {
	if err := t.Enter(ctx); err != nil {
		return err
	}
	defer t.Exit(context.WithoutCancel(ctx))

	interrupted := false
	for {
		if !interrupted && ctx.Err() != nil {
			if it, ok := t.(Interruptible); ok {
				it.Interrupt()
			}
			interrupted = true
		}

		if t.Update(ctx) != StateRunning {
			return nil
		}

		if interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
	}
}

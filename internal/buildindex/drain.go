package buildindex

import (
	"time"

	"github.com/dshills/gocontext-indexd/internal/blackboard"
)

// drain moves ready bundles from the workers' result channels into the sink
// and reports whether anything happened. Under backpressure it pops nothing,
// sleeps and still reports true so the caller retries soon.
func (t *Task) drain() bool {
	if pending := t.sink.PendingCount(); pending > t.tuning.BackpressureThreshold {
		t.logger.Info("waiting, too many bundles queued", "pending", pending)
		time.Sleep(t.tuning.BackpressureSleep)
		return true
	}

	popped := 0
	start := time.Now()
	for {
		slot, ok, err := t.status.NextFinished()
		if err != nil {
			t.logger.Error("failed to read finished slot", "error", err)
			break
		}
		if !ok {
			break
		}
		if slot < 1 || slot > len(t.results) {
			t.logger.Warn("finished slot out of range",
				"slot", slot,
				"workers", len(t.results))
			break
		}

		results := t.results[slot-1]
		buffered, err := results.Len()
		if err != nil {
			t.logger.Error("failed to read result channel", "slot", slot, "error", err)
			break
		}
		if buffered == 0 {
			break
		}

		bundle, ok, err := results.Pop()
		if err != nil {
			t.logger.Error("failed to pop result bundle", "slot", slot, "error", err)
			break
		}
		if !ok {
			break
		}
		t.logger.Debug("popped result bundle", "slot", slot, "buffered", buffered)
		t.sink.Insert(bundle)
		popped++

		if time.Since(start) >= t.tuning.DrainBudget {
			break
		}
	}

	if popped == 0 {
		return false
	}
	t.board.Add(blackboard.KeyIndexedSourceFileCount, popped)
	return true
}

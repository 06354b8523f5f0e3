package notify

import (
	"context"

	"joinerbot/pkg/logx"
)

// openBatch starts (or re-arms) a debounce window for a burst of joins.
// A batch supersedes any queued cooldown send: at most one pending send
// mechanism exists, and the batch carries the newer snapshot.
// Callers hold e.mu.
func (e *Engine) openBatch(newest Occupant, occupants []Occupant) {
	e.cancelQueuedTimer()
	e.pendingJoins = append(e.pendingJoins, newest)
	e.batchSnapshot = copySnapshot(occupants)
	e.batchCount = len(occupants)

	if e.batchTimer != nil {
		// Re-entrant open while batching: extend the pending set only,
		// never restart the running timer.
		return
	}

	gen := e.batchGen
	e.batchTimer = e.clk.AfterFunc(e.batchWindow, func() {
		e.flushBatch(gen)
	})
	e.log.Info("opened batch window",
		logx.Duration("window", e.batchWindow), logx.String("user", newest.ID))
}

// flushBatch runs when the batch timer expires. The generation check
// drops flushes whose batch was cancelled or superseded while the timer
// callback was waiting on the lock.
func (e *Engine) flushBatch(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.batchGen {
		e.log.Info("batch flush cancelled")
		return
	}
	e.batchTimer = nil
	e.batchGen++

	if len(e.pendingJoins) == 0 {
		// Everyone left before the window closed.
		e.batchSnapshot = nil
		e.batchCount = 0
		return
	}

	// The batch snapshot captured at the last fold is authoritative; the
	// deduplicated join list only backstops a missing snapshot.
	snapshot := e.batchSnapshot
	count := e.batchCount
	if len(snapshot) == 0 {
		joins := dedupeByID(e.pendingJoins)
		snapshot = joins
		count = len(joins)
	}

	e.sendNowLocked(context.Background(), snapshot, count)
	e.liveAt = e.clk.Now()

	e.pendingJoins = nil
	e.batchSnapshot = nil
	e.batchCount = 0
}

package notify

import (
	"context"
	"time"

	"joinerbot/pkg/logx"
)

// enqueueCooldown schedules one deferred send for when the cooldown
// window elapses. A fresh enqueue supersedes any still-pending deferred
// send (cancel-then-replace). Callers hold e.mu.
func (e *Engine) enqueueCooldown(occupants []Occupant, count int, now time.Time) {
	if e.liveAt.IsZero() {
		// Unreachable given the routing in Create, kept as a tripwire.
		e.log.Error("cooldown enqueue without a prior send timestamp")
		return
	}

	if e.queuedTimer != nil {
		e.queuedTimer.Stop()
		e.queuedTimer = nil
		e.log.Info("queued message superseded")
	}
	e.queuedGen++
	gen := e.queuedGen
	e.pendingUpdate = true

	delay := e.cooldownWindow - now.Sub(e.liveAt)
	if delay < 0 {
		delay = 0
	}

	snapshot := copySnapshot(occupants)
	e.queuedTimer = e.clk.AfterFunc(delay, func() {
		e.fireQueued(gen, snapshot, count)
	})
	e.log.Info("queued message", logx.Duration("delay", delay))
}

// fireQueued runs when the cooldown timer expires. Cancellation surfaces
// as a generation mismatch and is normal control flow, not an error.
func (e *Engine) fireQueued(gen uint64, occupants []Occupant, count int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.queuedGen {
		e.log.Info("queued message was cancelled")
		return
	}
	e.queuedTimer = nil

	if !e.pendingUpdate || len(occupants) == 0 {
		return
	}

	e.sendNowLocked(context.Background(), occupants, count)
	e.liveAt = e.clk.Now()
	e.pendingUpdate = false
}

// Package notify owns the lifecycle of the single voice-chat status
// message: batching bursts of joins into one send, enforcing a cooldown
// between consecutive sends, and editing the live message in place when
// membership changes without warranting a new notification.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/juju/clock"

	"joinerbot/internal/channel"
	"joinerbot/pkg/logx"
)

const (
	// DefaultBatchWindow is how long a batch stays open folding in
	// further joins before the coalesced message is sent.
	DefaultBatchWindow = 30 * time.Second

	// DefaultCooldownWindow is the minimum interval between two sent
	// (not edited) status messages.
	DefaultCooldownWindow = 10 * time.Minute
)

// Engine routes occupancy changes into one of three paths: open/extend a
// batch window, fold into a running batch, or queue a cooldown-deferred
// send. It holds all state for exactly one monitored voice channel.
//
// All operations and timer callbacks serialize on mu. Timer callbacks
// re-validate state under the lock (generation counters, pending flags)
// because the world may have changed while the timer was waiting.
type Engine struct {
	clk clock.Clock
	log logx.Logger

	mu sync.Mutex
	ch channel.Channel

	batchWindow    time.Duration
	cooldownWindow time.Duration

	live   *channel.Ref
	liveAt time.Time // zero until the first send

	batchTimer clock.Timer
	batchGen   uint64

	queuedTimer   clock.Timer
	queuedGen     uint64
	pendingUpdate bool

	pendingJoins  []Occupant
	batchSnapshot []Occupant
	batchCount    int
}

type Option func(*Engine)

func WithBatchWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.batchWindow = d
		}
	}
}

func WithCooldownWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cooldownWindow = d
		}
	}
}

func New(clk clock.Clock, log logx.Logger, opts ...Option) *Engine {
	if clk == nil {
		clk = clock.WallClock
	}
	e := &Engine{
		clk:            clk,
		log:            log,
		batchWindow:    DefaultBatchWindow,
		cooldownWindow: DefaultCooldownWindow,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// SetChannel installs the delivery channel. Until one is set, all engine
// operations warn and no-op.
func (e *Engine) SetChannel(ch channel.Channel) {
	e.mu.Lock()
	e.ch = ch
	e.mu.Unlock()
}

// SetWindows applies new batch/cooldown windows; zero keeps the current
// value. Running timers are not rescheduled, new windows apply to the
// next batch or queued send.
func (e *Engine) SetWindows(batch, cooldown time.Duration) {
	e.mu.Lock()
	if batch > 0 {
		e.batchWindow = batch
	}
	if cooldown > 0 {
		e.cooldownWindow = cooldown
	}
	e.mu.Unlock()
}

// Create handles a join. The snapshot lists everyone currently present in
// arrival order, the newest joiner last. When suppress is set (a likely
// reconnect), the live message is refreshed in place and no notification
// path runs.
func (e *Engine) Create(ctx context.Context, occupants []Occupant, suppress bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ch == nil {
		e.log.Warn("no delivery channel configured, dropping status update")
		return
	}
	if len(occupants) == 0 {
		e.log.Warn("create called with empty occupant snapshot")
		return
	}

	if suppress {
		e.log.Info("suppressing notification for recent rejoin")
		if e.live != nil {
			e.editLive(ctx, occupants)
		}
		return
	}

	now := e.clk.Now()
	newest := occupants[len(occupants)-1]

	switch {
	case e.batchTimer != nil:
		// Fold into the open batch. The snapshot overwrite is what keeps
		// the eventual flush current when late joiners arrive.
		e.pendingJoins = append(e.pendingJoins, newest)
		e.batchSnapshot = copySnapshot(occupants)
		e.batchCount = len(occupants)
		e.log.Debug("folded join into open batch",
			logx.String("user", newest.ID), logx.Int("pending", len(e.pendingJoins)))

	case len(occupants) == 1 || e.liveAt.IsZero() || now.Sub(e.liveAt) >= e.cooldownWindow:
		e.openBatch(newest, occupants)

	default:
		// Within the cooldown window and no batch in flight: defer a send
		// for the newest joiner only.
		e.enqueueCooldown([]Occupant{newest}, 1, now)
	}
}

// Update handles a leave (or any membership refresh that must not
// notify). An empty snapshot means everyone left and routes to Delete.
func (e *Engine) Update(ctx context.Context, occupants []Occupant) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ch == nil {
		return
	}
	if len(occupants) == 0 {
		// Everyone left. Clear pending state even when no live message
		// exists (a failed or vanished send leaves live unset while a
		// queued send may still be pending).
		e.deleteLocked(ctx)
		return
	}
	if e.live == nil {
		return
	}
	e.editLive(ctx, occupants)
}

// Delete removes the live status message (if any) and clears all pending
// batch and queue state. Safe to call repeatedly.
func (e *Engine) Delete(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleteLocked(ctx)
}

func (e *Engine) deleteLocked(ctx context.Context) {
	if e.live != nil && e.ch != nil {
		err := e.ch.Delete(ctx, *e.live)
		switch {
		case err == nil:
			e.log.Info("deleted voice chat message")
		case errors.Is(err, channel.ErrMessageGone):
			// already gone
		default:
			e.log.Error("failed to delete message", logx.Err(err))
		}
		e.live = nil
	}

	// Everyone left: drop pending batch and queued sends unconditionally.
	e.pendingJoins = nil
	e.batchSnapshot = nil
	e.batchCount = 0
	e.cancelBatchTimer()
	e.cancelQueuedTimer()
}

func (e *Engine) cancelBatchTimer() {
	if e.batchTimer != nil {
		e.batchTimer.Stop()
		e.batchTimer = nil
	}
	e.batchGen++
}

func (e *Engine) cancelQueuedTimer() {
	if e.queuedTimer != nil {
		e.queuedTimer.Stop()
		e.queuedTimer = nil
	}
	e.queuedGen++
	e.pendingUpdate = false
}

// editLive edits the live message in place. A gone message clears the
// stored handle without error.
func (e *Engine) editLive(ctx context.Context, occupants []Occupant) {
	text := Format(occupants, len(occupants))
	err := e.ch.Edit(ctx, *e.live, text)
	switch {
	case err == nil:
		e.log.Info("updated message", logx.String("text", text))
	case errors.Is(err, channel.ErrMessageGone):
		e.live = nil
	default:
		e.log.Error("failed to update message", logx.Err(err))
	}
}

// sendNowLocked deletes the previous live message, then sends a new one
// and stores its handle. On delivery failure the handle stays unset; the
// next flush or queued send recovers.
func (e *Engine) sendNowLocked(ctx context.Context, occupants []Occupant, count int) {
	if e.ch == nil {
		e.log.Error("no delivery channel configured")
		return
	}
	if e.live != nil {
		if err := e.ch.Delete(ctx, *e.live); err != nil && !errors.Is(err, channel.ErrMessageGone) {
			e.log.Warn("failed to delete previous message", logx.Err(err))
		}
		e.live = nil
	}

	text := Format(occupants, count)
	ref, err := e.ch.Send(ctx, text)
	if err != nil {
		e.log.Error("failed to send message", logx.Err(err))
		return
	}
	e.live = &ref
	e.log.Info("sent message", logx.String("text", text))
}

// Package tracker consumes voice join/leave events, keeps the presence
// store current, and drives the status-message engine with full
// occupancy snapshots.
package tracker

import (
	"context"
	"sync/atomic"
	"time"

	"joinerbot/internal/eventbus"
	"joinerbot/internal/notify"
	"joinerbot/internal/presence"
	"joinerbot/pkg/logx"
)

// DefaultRejoinWindow is how far back a prior join or leave counts as a
// recent connection, suppressing the notification for a rejoin.
const DefaultRejoinWindow = 5 * time.Minute

// Notifier is the engine surface the tracker drives.
type Notifier interface {
	Create(ctx context.Context, occupants []notify.Occupant, suppress bool)
	Update(ctx context.Context, occupants []notify.Occupant)
}

type Config struct {
	RejoinWindow time.Duration // 0 means DefaultRejoinWindow
}

type Tracker struct {
	store  *presence.Store
	engine Notifier
	log    logx.Logger

	// rejoinWindow holds nanoseconds; atomic because config reload can
	// change it while Run is handling events.
	rejoinWindow atomic.Int64
}

func New(store *presence.Store, engine Notifier, cfg Config, log logx.Logger) *Tracker {
	t := &Tracker{store: store, engine: engine, log: log}
	t.SetRejoinWindow(cfg.RejoinWindow)
	return t
}

// SetRejoinWindow applies a new suppression window; zero or negative
// resets to the default.
func (t *Tracker) SetRejoinWindow(w time.Duration) {
	if w <= 0 {
		w = DefaultRejoinWindow
	}
	t.rejoinWindow.Store(int64(w))
}

// Run consumes events until ctx is cancelled or the channel closes.
func (t *Tracker) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			t.Handle(ctx, e)
		}
	}
}

// Handle processes one event. Exported so tests can drive the tracker
// without a bus.
func (t *Tracker) Handle(ctx context.Context, e eventbus.Event) {
	switch e.Action {
	case eventbus.ActionJoin:
		t.handleJoin(ctx, e)
	case eventbus.ActionLeave:
		t.handleLeave(ctx, e)
	default:
		t.log.Warn("unknown event action", logx.String("action", e.Action))
	}
}

func (t *Tracker) handleJoin(ctx context.Context, e eventbus.Event) {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	// Suppression looks at history BEFORE this join is logged, otherwise
	// every join would suppress itself.
	window := time.Duration(t.rejoinWindow.Load())
	recent, err := t.store.WasRecentlyConnected(ctx, e.UserID, at.Add(-window))
	if err != nil {
		t.log.Error("recent-connection lookup failed", logx.Err(err))
	}

	added, err := t.store.AddCaller(ctx, e.UserID, e.DisplayName, at)
	if err != nil {
		t.log.Error("failed to add caller", logx.Err(err), logx.String("user", e.UserID))
		return
	}
	if err := t.store.LogJoinLeave(ctx, e.UserID, e.DisplayName, presence.ActionJoin, at); err != nil {
		t.log.Error("failed to log join", logx.Err(err))
	}

	suppress := recent || !added
	if !added {
		t.log.Debug("duplicate join", logx.String("user", e.UserID))
	}

	snapshot, err := t.snapshot(ctx)
	if err != nil {
		t.log.Error("failed to load occupancy snapshot", logx.Err(err))
		return
	}
	t.log.Info("user joined voice chat",
		logx.String("user", e.UserID), logx.Int("occupants", len(snapshot)),
		logx.Bool("suppressed", suppress))
	t.engine.Create(ctx, snapshot, suppress)
}

func (t *Tracker) handleLeave(ctx context.Context, e eventbus.Event) {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	deleted, err := t.store.DelCaller(ctx, e.UserID)
	if err != nil {
		t.log.Error("failed to remove caller", logx.Err(err), logx.String("user", e.UserID))
		return
	}
	if !deleted {
		// Leave for someone we never saw join (bot restarted mid-call, or
		// a state gap). Nothing to update.
		t.log.Debug("leave for unknown user", logx.String("user", e.UserID))
		return
	}
	if err := t.store.LogJoinLeave(ctx, e.UserID, e.DisplayName, presence.ActionLeave, at); err != nil {
		t.log.Error("failed to log leave", logx.Err(err))
	}

	snapshot, err := t.snapshot(ctx)
	if err != nil {
		t.log.Error("failed to load occupancy snapshot", logx.Err(err))
		return
	}
	t.log.Info("user left voice chat",
		logx.String("user", e.UserID), logx.Int("occupants", len(snapshot)))
	t.engine.Update(ctx, snapshot)
}

func (t *Tracker) snapshot(ctx context.Context) ([]notify.Occupant, error) {
	callers, err := t.store.Callers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]notify.Occupant, 0, len(callers))
	for _, c := range callers {
		out = append(out, notify.Occupant{ID: c.UserID, DisplayName: c.Username})
	}
	return out, nil
}

// Package app wires the bot together: config, logging, storage, the
// voice gateway, the status-message engine, and the maintenance jobs.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"

	"joinerbot/internal/channel"
	chandiscord "joinerbot/internal/channel/discord"
	chantelegram "joinerbot/internal/channel/telegram"
	"joinerbot/internal/config"
	"joinerbot/internal/eventbus"
	gwdiscord "joinerbot/internal/gateway/discord"
	"joinerbot/internal/maintenance"
	"joinerbot/internal/notify"
	"joinerbot/internal/presence"
	"joinerbot/internal/runtime/supervisor"
	"joinerbot/internal/tracker"
	"joinerbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	bus     eventbus.Bus
	store   *presence.Store
	engine  *notify.Engine
	tracker *tracker.Tracker
	maint   *maintenance.Service

	gateway *gwdiscord.Gateway // nil for the telegram driver
	ch      channel.Channel
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Bootstrap with the mirror disabled; it is enabled in Start once
	// the delivery channel exists to carry it.
	logSvc, log := logx.New(logCfg(cfg, false))
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := presence.Open(presence.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "presence")))
	if err != nil {
		return nil, err
	}

	batch, cooldown, rejoin := cfg.Durations(
		notify.DefaultBatchWindow, notify.DefaultCooldownWindow, tracker.DefaultRejoinWindow)

	bus := eventbus.New()
	engine := notify.New(clock.WallClock, log.With(logx.String("comp", "notify")),
		notify.WithBatchWindow(batch), notify.WithCooldownWindow(cooldown))
	trk := tracker.New(store, engine,
		tracker.Config{RejoinWindow: rejoin}, log.With(logx.String("comp", "tracker")))

	retention, _ := config.ParseDurationField("maintenance.retention", cfg.Maintenance.Retention)
	maint := maintenance.New(store, maintenance.Config{
		Schedule:  cfg.Maintenance.Schedule,
		Retention: retention,
	}, log.With(logx.String("comp", "maintenance")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		engine:  engine,
		tracker: trk,
		maint:   maint,
	}, nil
}

// Done is closed when the supervisor context is cancelled (fatal error
// or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	cfg := a.cfgm.Get()

	// Stale rows would double-count people once the gateway replays the
	// live channel state.
	if err := a.store.Reset(ctx); err != nil {
		return err
	}

	ch, err := a.openChannel(cfg)
	if err != nil {
		return err
	}
	a.ch = ch
	a.engine.SetChannel(ch)

	// Now that sends can go somewhere, enable the mirror.
	a.logs.SetMirrorSender(channelSender{ch: ch})
	a.logs.Apply(logCfg(cfg, true))

	events, unsub := a.bus.Subscribe(256)
	a.sup.Go0("tracker.run", func(c context.Context) {
		defer unsub()
		a.tracker.Run(c, events)
	})

	if err := a.maint.Start(); err != nil {
		return err
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return c.Validate()
	})
	// Watch self-heals transient fs errors internally; GoRestart covers
	// the unrecoverable ones (watcher setup failures) with backoff.
	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(newCfg)
			}
		}
	})

	a.log.Info("started", logx.String("driver", cfg.Channel.Driver))
	return nil
}

// openChannel builds the delivery channel for the configured driver.
// The discord driver also starts the voice gateway and shares its
// session with the message adapter.
func (a *App) openChannel(cfg *config.Config) (channel.Channel, error) {
	switch cfg.Channel.Driver {
	case "discord":
		d := cfg.Channel.Discord
		gw, err := gwdiscord.New(gwdiscord.Config{
			Token:          d.Token,
			GuildID:        d.GuildID,
			VoiceChannelID: d.VoiceChannelID,
		}, a.bus, a.log.With(logx.String("comp", "gateway")))
		if err != nil {
			return nil, err
		}
		if err := gw.Start(); err != nil {
			return nil, err
		}
		a.gateway = gw
		return chandiscord.New(gw.Session(), chandiscord.Config{
			ChannelID:  d.TextChannelID,
			RatePerSec: d.RatePerSec,
		}, a.log.With(logx.String("comp", "channel")))
	case "telegram":
		t := cfg.Channel.Telegram
		return chantelegram.New(chantelegram.Config{
			Token:      t.Token,
			ChatID:     t.ChatID,
			RatePerSec: t.RatePerSec,
		}, a.log.With(logx.String("comp", "channel")))
	default:
		return nil, errors.New("unknown channel driver: " + cfg.Channel.Driver)
	}
}

// applyReload pushes hot-reloadable settings into running components.
// Channel and storage settings only apply on the next restart.
func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(logCfg(cfg, true))

	batch, cooldown, rejoin := cfg.Durations(
		notify.DefaultBatchWindow, notify.DefaultCooldownWindow, tracker.DefaultRejoinWindow)
	a.engine.SetWindows(batch, cooldown)
	a.tracker.SetRejoinWindow(rejoin)

	a.log.Info("config applied",
		logx.Duration("batch_window", batch),
		logx.Duration("cooldown_window", cooldown),
		logx.Duration("rejoin_window", rejoin))
}

func (a *App) Stop(ctx context.Context) error {
	if a.maint != nil {
		a.maint.Stop()
	}
	if a.gateway != nil {
		if err := a.gateway.Stop(); err != nil {
			a.log.Warn("gateway stop failed", logx.Err(err))
		}
	}

	var firstErr error
	if a.sup != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.sup.Stop(stopCtx); err != nil {
			firstErr = err
		}
		cancel()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return firstErr
}

func logCfg(cfg *config.Config, mirrorAllowed bool) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Mirror: logx.MirrorConfig{
			Enabled:    mirrorAllowed && cfg.Logging.Mirror.Enabled,
			MinLevel:   cfg.Logging.Mirror.MinLevel,
			RatePerSec: cfg.Logging.Mirror.RatePerSec,
		},
	}
}

// channelSender lets the log mirror ride the delivery channel.
type channelSender struct {
	ch channel.Channel
}

func (s channelSender) SendLogLine(ctx context.Context, text string) error {
	_, err := s.ch.Send(ctx, text)
	return err
}

package config

import "time"

type Config struct {
	Channel     ChannelConfig     `json:"channel"`
	Notify      NotifyConfig      `json:"notify"`
	Logging     LoggingConfig     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
}

// ChannelConfig selects and configures the delivery channel.
//
// Driver values: "discord" or "telegram".
type ChannelConfig struct {
	Driver   string          `json:"driver"`
	Discord  *DiscordConfig  `json:"discord,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type DiscordConfig struct {
	Token          string `json:"token"`
	GuildID        string `json:"guild_id"`
	VoiceChannelID string `json:"voice_channel_id"`
	TextChannelID  string `json:"text_channel_id"`
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
}

type TelegramConfig struct {
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// NotifyConfig tunes the status-message engine.
//
// All durations are Go duration strings (e.g. "30s", "10m").
// Omitted fields keep their built-in defaults.
type NotifyConfig struct {
	BatchWindow    string `json:"batch_window,omitempty"`
	CooldownWindow string `json:"cooldown_window,omitempty"`
	RejoinWindow   string `json:"rejoin_window,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Mirror  LoggingMirror `json:"mirror"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingMirror forwards log lines at or above MinLevel into the
// delivery channel's chat, rate limited.
type LoggingMirror struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type MaintenanceConfig struct {
	Schedule  string `json:"schedule,omitempty"`  // cron spec or descriptor, default "@daily"
	Retention string `json:"retention,omitempty"` // Go duration string, default 720h
}

// Validate checks the parts that would otherwise fail deep inside
// startup, so a broken file is rejected before anything connects.
func (c *Config) Validate() error {
	switch c.Channel.Driver {
	case "discord":
		d := c.Channel.Discord
		if d == nil {
			return errMissing("channel.discord")
		}
		if d.Token == "" {
			return errMissing("channel.discord.token")
		}
		if d.VoiceChannelID == "" {
			return errMissing("channel.discord.voice_channel_id")
		}
		if d.TextChannelID == "" {
			return errMissing("channel.discord.text_channel_id")
		}
	case "telegram":
		t := c.Channel.Telegram
		if t == nil {
			return errMissing("channel.telegram")
		}
		if t.Token == "" {
			return errMissing("channel.telegram.token")
		}
		if t.ChatID == 0 {
			return errMissing("channel.telegram.chat_id")
		}
	default:
		return errMissing("channel.driver (discord or telegram)")
	}

	if c.Storage.Path == "" {
		return errMissing("storage.path")
	}

	for _, f := range []struct{ path, raw string }{
		{"notify.batch_window", c.Notify.BatchWindow},
		{"notify.cooldown_window", c.Notify.CooldownWindow},
		{"notify.rejoin_window", c.Notify.RejoinWindow},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"maintenance.retention", c.Maintenance.Retention},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}

// Durations returns the parsed engine/tracker windows, falling back to
// def values for omitted fields. Call after Validate.
func (c *Config) Durations(defBatch, defCooldown, defRejoin time.Duration) (batch, cooldown, rejoin time.Duration) {
	batch, _ = ParseDurationOrDefault("notify.batch_window", c.Notify.BatchWindow, defBatch)
	cooldown, _ = ParseDurationOrDefault("notify.cooldown_window", c.Notify.CooldownWindow, defCooldown)
	rejoin, _ = ParseDurationOrDefault("notify.rejoin_window", c.Notify.RejoinWindow, defRejoin)
	return batch, cooldown, rejoin
}

type missingFieldError string

func (e missingFieldError) Error() string { return "config: missing " + string(e) }

func errMissing(path string) error { return missingFieldError(path) }

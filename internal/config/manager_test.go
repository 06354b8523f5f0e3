package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
channel:
  driver: discord
  discord:
    token: "abc"
    guild_id: "g1"
    voice_channel_id: "vc1"
    text_channel_id: "tc1"
notify:
  batch_window: "30s"
  cooldown_window: "10m"
  rejoin_window: "5m"
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
  mirror:
    enabled: false
    min_level: warn
    rate_per_sec: 1
storage:
  path: "./joinerbot.db"
maintenance:
  schedule: "@daily"
  retention: "720h"
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidYAML(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Channel.Driver != "discord" {
		t.Fatalf("driver = %q", cfg.Channel.Driver)
	}
	if cfg.Channel.Discord == nil || cfg.Channel.Discord.VoiceChannelID != "vc1" {
		t.Fatalf("discord section = %+v", cfg.Channel.Discord)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get returned a different snapshot")
	}

	batch, cooldown, rejoin := cfg.Durations(time.Second, time.Second, time.Second)
	if batch != 30*time.Second || cooldown != 10*time.Minute || rejoin != 5*time.Minute {
		t.Fatalf("durations = %v %v %v", batch, cooldown, rejoin)
	}
}

func TestDurationsFallBackToDefaults(t *testing.T) {
	cfg := &Config{}
	batch, cooldown, rejoin := cfg.Durations(30*time.Second, 10*time.Minute, 5*time.Minute)
	if batch != 30*time.Second || cooldown != 10*time.Minute || rejoin != 5*time.Minute {
		t.Fatalf("defaults not applied: %v %v %v", batch, cooldown, rejoin)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", validYAML+"\nbogus_key: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatalf("unknown top-level key accepted")
	}
}

func TestValidateCatchesMissingFields(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"no driver", func(c *Config) { c.Channel.Driver = "" }},
		{"bad driver", func(c *Config) { c.Channel.Driver = "irc" }},
		{"discord without section", func(c *Config) { c.Channel.Discord = nil }},
		{"missing token", func(c *Config) { c.Channel.Discord.Token = "" }},
		{"missing voice channel", func(c *Config) { c.Channel.Discord.VoiceChannelID = "" }},
		{"missing text channel", func(c *Config) { c.Channel.Discord.TextChannelID = "" }},
		{"missing storage path", func(c *Config) { c.Storage.Path = "" }},
		{"bad duration", func(c *Config) { c.Notify.BatchWindow = "thirty seconds" }},
	}
	for _, tc := range cases {
		m := NewManager(writeConfig(t, "config.yaml", validYAML))
		cfg, err := m.Load()
		if err != nil {
			t.Fatalf("%s: load: %v", tc.name, err)
		}
		tc.mut(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: validation passed", tc.name)
		}
	}
}

func TestValidateTelegramDriver(t *testing.T) {
	cfg := &Config{
		Channel: ChannelConfig{
			Driver:   "telegram",
			Telegram: &TelegramConfig{Token: "abc", ChatID: -100123},
		},
		Storage: StorageConfig{Path: "./db"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.Channel.Telegram.ChatID = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("missing chat id accepted")
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", "90s"); err != nil || d != 90*time.Second {
		t.Fatalf("d=%v err=%v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: d=%v err=%v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatalf("negative duration accepted")
	}
	if _, err := ParseDurationField("x", "nonsense"); err == nil {
		t.Fatalf("garbage accepted")
	}
}

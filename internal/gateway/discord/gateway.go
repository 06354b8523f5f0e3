// Package discord connects to the Discord gateway and turns voice-state
// updates for one watched channel into join/leave events on the bus.
package discord

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"joinerbot/internal/eventbus"
	"joinerbot/pkg/logx"
)

type Config struct {
	Token          string
	GuildID        string
	VoiceChannelID string
}

// Gateway owns the discordgo session. It publishes transitions into and
// out of the watched voice channel; moves between two unwatched channels
// are ignored.
type Gateway struct {
	cfg Config
	bus eventbus.Bus
	log logx.Logger

	session *discordgo.Session
}

func New(cfg Config, bus eventbus.Bus, log logx.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is required")
	}
	if strings.TrimSpace(cfg.VoiceChannelID) == "" {
		return nil, errors.New("discord voice channel id is required")
	}
	return &Gateway{cfg: cfg, bus: bus, log: log}, nil
}

// Start opens the gateway connection. Handlers run on discordgo's event
// goroutines and only touch the bus, which is safe for concurrent use.
func (g *Gateway) Start() error {
	dg, err := discordgo.New("Bot " + strings.TrimSpace(g.cfg.Token))
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.MakeIntent(
		discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers)
	dg.StateEnabled = true

	dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		g.log.Info("discord gateway ready",
			logx.String("user", r.User.Username), logx.Int("guilds", len(r.Guilds)))
	})
	dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		g.log.Warn("discord gateway disconnected")
	})
	dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		g.log.Info("discord gateway resumed")
	})
	dg.AddHandler(g.onVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return err
	}
	g.session = dg
	g.log.Info("watching voice channel", logx.String("channel", g.cfg.VoiceChannelID))
	return nil
}

func (g *Gateway) Stop() error {
	if g.session == nil {
		return nil
	}
	return g.session.Close()
}

// Session exposes the underlying connection so the message adapter can
// share it instead of opening a second one.
func (g *Gateway) Session() *discordgo.Session {
	return g.session
}

func (g *Gateway) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if g.cfg.GuildID != "" && vs.GuildID != g.cfg.GuildID {
		return
	}
	if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
		return
	}

	watched := g.cfg.VoiceChannelID
	wasIn := vs.BeforeUpdate != nil && vs.BeforeUpdate.ChannelID == watched
	isIn := vs.ChannelID == watched

	switch {
	case isIn && !wasIn:
		g.bus.Publish(eventbus.Event{
			UserID:      vs.UserID,
			DisplayName: g.displayName(s, vs),
			Action:      eventbus.ActionJoin,
			At:          time.Now(),
		})
	case wasIn && !isIn:
		g.bus.Publish(eventbus.Event{
			UserID:      vs.UserID,
			DisplayName: g.displayName(s, vs),
			Action:      eventbus.ActionLeave,
			At:          time.Now(),
		})
	}
}

// displayName picks the friendliest name available: server nickname,
// then global display name, then the account username, then the raw ID.
func (g *Gateway) displayName(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) string {
	m := vs.Member
	if m == nil {
		if cached, err := s.State.Member(vs.GuildID, vs.UserID); err == nil {
			m = cached
		}
	}
	if m == nil {
		if fetched, err := s.GuildMember(vs.GuildID, vs.UserID); err == nil {
			m = fetched
		} else {
			g.log.Warn("failed to resolve member",
				logx.String("user", vs.UserID), logx.Err(err))
		}
	}
	if m != nil {
		if m.Nick != "" {
			return m.Nick
		}
		if m.User != nil {
			if m.User.GlobalName != "" {
				return m.User.GlobalName
			}
			if m.User.Username != "" {
				return m.User.Username
			}
		}
	}
	return vs.UserID
}

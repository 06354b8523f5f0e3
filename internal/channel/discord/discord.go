// Package discord delivers the status message through a Discord text
// channel using a shared discordgo session.
package discord

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"joinerbot/internal/channel"
	"joinerbot/pkg/logx"
)

type Config struct {
	ChannelID  string
	RatePerSec int // 0 means 1
}

// Adapter implements channel.Channel on top of a discordgo session.
type Adapter struct {
	session *discordgo.Session
	cfg     Config
	log     logx.Logger
	limiter *rate.Limiter
}

func New(session *discordgo.Session, cfg Config, log logx.Logger) (*Adapter, error) {
	if session == nil {
		return nil, errors.New("discord session is required")
	}
	if strings.TrimSpace(cfg.ChannelID) == "" {
		return nil, errors.New("discord text channel id is required")
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Adapter{
		session: session,
		cfg:     cfg,
		log:     log,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (a *Adapter) Send(ctx context.Context, text string) (channel.Ref, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return channel.Ref{}, err
	}
	msg, err := a.session.ChannelMessageSend(a.cfg.ChannelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return channel.Ref{}, err
	}
	return channel.Ref{ChannelID: a.cfg.ChannelID, MessageID: msg.ID}, nil
}

func (a *Adapter) Edit(ctx context.Context, ref channel.Ref, text string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.session.ChannelMessageEdit(ref.ChannelID, ref.MessageID, text, discordgo.WithContext(ctx))
	if isGone(err) {
		return channel.ErrMessageGone
	}
	return err
}

func (a *Adapter) Delete(ctx context.Context, ref channel.Ref) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	err := a.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if isGone(err) {
		return channel.ErrMessageGone
	}
	return err
}

// isGone reports whether err means the target message no longer exists.
func isGone(err error) bool {
	if err == nil {
		return false
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownMessage {
			return true
		}
		if rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
			return true
		}
	}
	return false
}

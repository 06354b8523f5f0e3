// Package telegram delivers the status message through a Telegram chat
// via telebot.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"joinerbot/internal/channel"
	"joinerbot/pkg/logx"
)

type Config struct {
	Token      string
	ChatID     int64
	RatePerSec int // 0 means 1
}

// Adapter implements channel.Channel on top of a telebot bot. The bot
// is used purely for outbound API calls; no update polling runs.
type Adapter struct {
	bot     *tele.Bot
	cfg     Config
	log     logx.Logger
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	// No poller: the bot is outbound only.
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Adapter{
		bot:     bot,
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (a *Adapter) Send(ctx context.Context, text string) (channel.Ref, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return channel.Ref{}, err
	}
	msg, err := a.bot.Send(&tele.Chat{ID: a.cfg.ChatID}, text)
	if err != nil {
		return channel.Ref{}, err
	}
	return channel.Ref{
		ChannelID: strconv.FormatInt(a.cfg.ChatID, 10),
		MessageID: strconv.Itoa(msg.ID),
	}, nil
}

func (a *Adapter) Edit(ctx context.Context, ref channel.Ref, text string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	m, err := toMessage(ref)
	if err != nil {
		return err
	}
	_, err = a.bot.Edit(m, text)
	if isGone(err) {
		return channel.ErrMessageGone
	}
	return err
}

func (a *Adapter) Delete(ctx context.Context, ref channel.Ref) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	m, err := toMessage(ref)
	if err != nil {
		return err
	}
	err = a.bot.Delete(m)
	if isGone(err) {
		return channel.ErrMessageGone
	}
	return err
}

func toMessage(ref channel.Ref) (*tele.Message, error) {
	chatID, err := strconv.ParseInt(ref.ChannelID, 10, 64)
	if err != nil {
		return nil, errors.New("malformed chat id in message ref")
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return nil, errors.New("malformed message id in message ref")
	}
	return &tele.Message{ID: msgID, Chat: &tele.Chat{ID: chatID}}, nil
}

// isGone matches the Bot API errors Telegram returns when the target
// message was already removed. Telebot surfaces them as generic API
// errors, so the description text is the only signal.
func isGone(err error) bool {
	if err == nil {
		return false
	}
	desc := strings.ToLower(err.Error())
	return strings.Contains(desc, "message to delete not found") ||
		strings.Contains(desc, "message to edit not found") ||
		strings.Contains(desc, "message can't be deleted") ||
		strings.Contains(desc, "message_id_invalid")
}

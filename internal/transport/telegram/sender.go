// Package telegram delivers alerts to a Telegram chat or channel through the
// Bot API (telebot).
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"hftracker/internal/transport"
	logx "hftracker/pkg/logx"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API endpoint (tests, local bot API servers).
	APIURL  string
	Timeout time.Duration
}

// Sender is a send-only Telegram client. It never polls for updates.
type Sender struct {
	bot *tele.Bot
	log logx.Logger
}

var _ transport.Sender = (*Sender)(nil)

func New(cfg Config, log logx.Logger) (*Sender, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" || token == PlaceholderToken {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// Offline skips the getMe round trip; the first send validates the token.
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(cfg.APIURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{bot: b, log: log}, nil
}

// Send delivers text to channel, splitting it when it exceeds Telegram's
// message size. telebot calls are not context aware, so ctx is only checked
// between chunks.
func (s *Sender) Send(ctx context.Context, channel, text string, opt *transport.SendOptions) error {
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	to, err := ParseChannelID(channel)
	if err != nil {
		return err
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	for i, chunk := range chunks {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		sendOpt := &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
		}
		if _, err := s.bot.Send(to, chunk, sendOpt); err != nil {
			return err
		}
		if len(chunks) > 1 {
			s.log.Debug("telegram chunk sent", logx.Int("part", i+1), logx.Int("parts", len(chunks)))
		}
	}
	return nil
}

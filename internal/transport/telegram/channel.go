package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Placeholder values shipped in the sample config. They count as unset.
const (
	PlaceholderToken   = "YOUR_TELEGRAM_BOT_TOKEN"
	PlaceholderChannel = "YOUR_TELEGRAM_CHANNEL_ID"
)

var ErrNoChannel = errors.New("telegram channel is not configured")

// username addresses a public channel or group by its @handle.
type username string

func (u username) Recipient() string { return string(u) }

// ParseChannelID normalizes a configured channel id. Numeric strings,
// optionally negative, become chat ids; "@handle" is passed through.
func ParseChannelID(s string) (tele.Recipient, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == PlaceholderChannel {
		return nil, ErrNoChannel
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return tele.ChatID(id), nil
	}
	if strings.HasPrefix(s, "@") && len(s) > 1 && !strings.ContainsAny(s, " \t\n") {
		return username(s), nil
	}
	return nil, fmt.Errorf("invalid telegram channel id %q: want a numeric id or @handle", s)
}

// Configured reports whether token and channel are both set to real values.
func Configured(token, channel string) bool {
	token = strings.TrimSpace(token)
	if token == "" || token == PlaceholderToken {
		return false
	}
	_, err := ParseChannelID(channel)
	return err == nil
}

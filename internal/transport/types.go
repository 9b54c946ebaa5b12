package transport

import "context"

// SendOptions are channel-neutral delivery hints.
type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers text to a named channel of a messaging platform.
// channel is platform specific (Telegram: numeric chat id or @handle).
type Sender interface {
	Send(ctx context.Context, channel, text string, opt *SendOptions) error
}

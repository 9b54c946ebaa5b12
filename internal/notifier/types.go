package notifier

import (
	"context"
	"time"
)

// Dispatcher delivers one alert text.
type Dispatcher interface {
	Send(ctx context.Context, text string) error
}

type Config struct {
	// Channel is the platform channel id (Telegram: chat id or @handle).
	// Empty means unconfigured.
	Channel        string
	ParseMode      string
	DisablePreview bool
	// Pace is the minimum gap between consecutive deliveries.
	Pace        time.Duration
	SendTimeout time.Duration
	HistorySize int
}

type HistoryItem struct {
	At   time.Time
	Text string
	Err  string
}

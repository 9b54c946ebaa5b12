package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Config mirrors the config file. The first five keys are the tracker's
// classic keys; the nested sections are optional tuning.
type Config struct {
	HFUsers              []string       `json:"hf_users"`
	Telegram             TelegramConfig `json:"telegram"`
	CheckIntervalMinutes int            `json:"check_interval_minutes,omitempty"`
	StateFile            string         `json:"state_file,omitempty"`

	// Schedule is an optional cron expression; when set it overrides
	// check_interval_minutes.
	Schedule string `json:"schedule,omitempty"`
	// Cooldown is the pause after a failed cycle (Go duration string).
	Cooldown string `json:"cooldown,omitempty"`

	Catalog  *CatalogConfig  `json:"catalog,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Logging  LoggingConfig   `json:"logging"`
}

type TelegramConfig struct {
	BotToken  string    `json:"bot_token"`
	ChannelID ChannelID `json:"channel_id"`
	// APIURL overrides the Bot API endpoint (self-hosted bot API servers).
	APIURL string `json:"api_url,omitempty"`
	// Timeout is a Go duration string for a single Bot API request.
	Timeout string `json:"timeout,omitempty"`
}

// ChannelID accepts either a JSON number (-1001234567890) or a string
// ("@channel" or "-1001234567890") and keeps it as text.
type ChannelID string

func (c *ChannelID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ChannelID(strings.TrimSpace(s))
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("telegram.channel_id: want number or string: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("telegram.channel_id: %q is not an integer", n.String())
	}
	*c = ChannelID(n.String())
	return nil
}

func (c ChannelID) String() string { return string(c) }

// CatalogConfig tunes the Hugging Face API client.
//
// Example:
//
//	"catalog": { "token": "hf_...", "timeout": "30s", "rate_per_sec": 5 }
type CatalogConfig struct {
	BaseURL    string  `json:"base_url,omitempty"`
	Token      string  `json:"token,omitempty"` // do not log
	Timeout    string  `json:"timeout,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	PageLimit  int     `json:"page_limit,omitempty"`
}

// StorageConfig selects the snapshot store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./tracker_state.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`         // default: state_file
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// NotifierConfig controls alert delivery.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifierConfig struct {
	Pace           string `json:"pace,omitempty"`
	SendTimeout    string `json:"send_timeout,omitempty"`
	DisablePreview bool   `json:"disable_preview,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "hftracker/pkg/logx"
)

const (
	DefaultIntervalMinutes = 60
	DefaultStateFile       = "tracker_state.json"
	DefaultCooldown        = time.Minute
	DefaultCatalogTimeout  = 30 * time.Second
	DefaultTelegramTimeout = 30 * time.Second
	DefaultPace            = time.Second
	DefaultSendTimeout     = 30 * time.Second
)

// Settings is Config with defaults applied and durations parsed.
type Settings struct {
	Accounts []string

	BotToken        string
	ChannelID       string
	TelegramAPIURL  string
	TelegramTimeout time.Duration

	Interval time.Duration
	Cron     string
	Cooldown time.Duration

	CatalogBaseURL   string
	CatalogToken     string
	CatalogTimeout   time.Duration
	CatalogRate      float64
	CatalogPageLimit int

	StorageDriver      string
	StoragePath        string
	StorageBusyTimeout time.Duration

	Pace           time.Duration
	SendTimeout    time.Duration
	DisablePreview bool
	HistorySize    int

	Logging logx.Config
}

// Resolve validates cfg and applies defaults. Errors name the offending key.
func (c *Config) Resolve() (*Settings, error) {
	if c == nil {
		return nil, errors.New("config is nil")
	}
	s := &Settings{
		Accounts:       trimAll(c.HFUsers),
		BotToken:       strings.TrimSpace(c.Telegram.BotToken),
		ChannelID:      c.Telegram.ChannelID.String(),
		TelegramAPIURL: strings.TrimSpace(c.Telegram.APIURL),
		Cron:           strings.TrimSpace(c.Schedule),
		Logging: logx.Config{
			Level:   c.Logging.Level,
			Console: c.Logging.Console,
			File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
		},
	}
	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
	if !s.Logging.Console && !s.Logging.File.Enabled {
		s.Logging.Console = true
	}

	r := &resolver{}
	s.TelegramTimeout = r.duration("telegram.timeout", c.Telegram.Timeout, DefaultTelegramTimeout)

	switch {
	case c.CheckIntervalMinutes < 0:
		r.fail("check_interval_minutes", "must be >= 0, got %d", c.CheckIntervalMinutes)
	case c.CheckIntervalMinutes == 0:
		s.Interval = DefaultIntervalMinutes * time.Minute
	default:
		s.Interval = time.Duration(c.CheckIntervalMinutes) * time.Minute
	}
	s.Cooldown = r.duration("cooldown", c.Cooldown, DefaultCooldown)

	cat := c.Catalog
	if cat == nil {
		cat = &CatalogConfig{}
	}
	s.CatalogBaseURL = strings.TrimSpace(cat.BaseURL)
	s.CatalogToken = strings.TrimSpace(cat.Token)
	if cat.PageLimit < 0 {
		r.fail("catalog.page_limit", "must be >= 0, got %d", cat.PageLimit)
	}
	s.CatalogPageLimit = cat.PageLimit
	if cat.RatePerSec < 0 {
		r.fail("catalog.rate_per_sec", "must be >= 0, got %g", cat.RatePerSec)
	}
	s.CatalogRate = cat.RatePerSec
	s.CatalogTimeout = r.duration("catalog.timeout", cat.Timeout, DefaultCatalogTimeout)

	st := c.Storage
	if st == nil {
		st = &StorageConfig{}
	}
	s.StorageDriver = strings.ToLower(strings.TrimSpace(st.Driver))
	switch s.StorageDriver {
	case "", "file", "json", "sqlite", "sqlite3":
	default:
		r.fail("storage.driver", "unknown driver %q (want file or sqlite)", st.Driver)
	}
	s.StoragePath = strings.TrimSpace(st.Path)
	if s.StoragePath == "" {
		s.StoragePath = strings.TrimSpace(c.StateFile)
	}
	if s.StoragePath == "" {
		s.StoragePath = DefaultStateFile
	}
	s.StorageBusyTimeout = r.duration("storage.busy_timeout", st.BusyTimeout, 0)

	n := c.Notifier
	if n == nil {
		n = &NotifierConfig{}
	}
	s.Pace = r.duration("notifier.pace", n.Pace, DefaultPace)
	s.SendTimeout = r.duration("notifier.send_timeout", n.SendTimeout, DefaultSendTimeout)
	s.DisablePreview = n.DisablePreview
	s.HistorySize = n.HistorySize

	if err := r.err(); err != nil {
		return nil, err
	}
	return s, nil
}

// resolver collects one error per bad key so a broken config is reported
// in full rather than one key per restart.
type resolver struct {
	errs []error
}

func (r *resolver) fail(key, format string, args ...any) {
	r.errs = append(r.errs, fmt.Errorf("%s: %s", key, fmt.Sprintf(format, args...)))
}

// duration parses a Go duration string ("90s", "5m"). Empty or zero yields def.
func (r *resolver) duration(key, raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		r.fail(key, "invalid duration %q (want e.g. \"30s\" or \"5m\")", raw)
		return def
	case d < 0:
		r.fail(key, "must be >= 0, got %s", d)
		return def
	case d == 0:
		return def
	}
	return d
}

func (r *resolver) err() error { return errors.Join(r.errs...) }

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

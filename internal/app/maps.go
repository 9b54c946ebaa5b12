package app

import (
	"context"
	"fmt"
	"strings"

	"hftracker/internal/catalog"
	"hftracker/internal/config"
	"hftracker/internal/notifier"
	"hftracker/internal/schedule"
	"hftracker/internal/storage"
	"hftracker/internal/transport/telegram"
	"hftracker/pkg/tgui"
)

func mapStorageConfig(s *config.Settings) storage.Config {
	return storage.Config{Driver: s.StorageDriver, Path: s.StoragePath, BusyTimeout: s.StorageBusyTimeout}
}

func mapCatalogOptions(s *config.Settings) []catalog.Option {
	opts := []catalog.Option{
		catalog.WithTimeout(s.CatalogTimeout),
		catalog.WithRateLimit(s.CatalogRate),
	}
	if s.CatalogBaseURL != "" {
		opts = append(opts, catalog.WithBaseURL(s.CatalogBaseURL))
	}
	if s.CatalogToken != "" {
		opts = append(opts, catalog.WithToken(s.CatalogToken))
	}
	if s.CatalogPageLimit > 0 {
		opts = append(opts, catalog.WithPageLimit(s.CatalogPageLimit))
	}
	return opts
}

// mapNotifierConfig leaves Channel empty when Telegram is not configured so
// the notifier degrades to logging.
func mapNotifierConfig(s *config.Settings) notifier.Config {
	nc := notifier.Config{
		ParseMode:      tgui.ParseModeHTML,
		DisablePreview: s.DisablePreview,
		Pace:           s.Pace,
		SendTimeout:    s.SendTimeout,
		HistorySize:    s.HistorySize,
	}
	if telegram.Configured(s.BotToken, s.ChannelID) {
		nc.Channel = s.ChannelID
	}
	return nc
}

func mapTelegramConfig(s *config.Settings) telegram.Config {
	return telegram.Config{Token: s.BotToken, APIURL: s.TelegramAPIURL, Timeout: s.TelegramTimeout}
}

func mapScheduleConfig(s *config.Settings) schedule.Config {
	return schedule.Config{Interval: s.Interval, Cron: s.Cron, Cooldown: s.Cooldown}
}

// validate is the config manager's validation hook: a config that fails here
// is rejected at startup and ignored on hot reload.
func validate(_ context.Context, cfg *config.Config) error {
	s, err := cfg.Resolve()
	if err != nil {
		return err
	}
	if s.Cron != "" {
		if _, err := schedule.ParseCron(s.Cron); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}
	ch := strings.TrimSpace(s.ChannelID)
	if ch != "" && ch != telegram.PlaceholderChannel {
		if _, err := telegram.ParseChannelID(ch); err != nil {
			return fmt.Errorf("telegram.channel_id: %w", err)
		}
	}
	return nil
}

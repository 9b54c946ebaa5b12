package config

import (
	"reflect"
	"strings"

	logx "hftracker/pkg/logx"
)

// SummarizeConfigChange returns the changed sections and safe structured
// attrs for logging. Secrets (bot token, catalog token) are never included,
// only whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(trimAll(oldCfg.HFUsers), trimAll(newCfg.HFUsers)) {
		changed = append(changed, "hf_users")
		attrs = append(attrs, logx.Strings("hf_users", trimAll(newCfg.HFUsers)))
	}

	if oldCfg.CheckIntervalMinutes != newCfg.CheckIntervalMinutes ||
		strings.TrimSpace(oldCfg.Schedule) != strings.TrimSpace(newCfg.Schedule) ||
		strings.TrimSpace(oldCfg.Cooldown) != strings.TrimSpace(newCfg.Cooldown) {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.Int("check_interval_minutes", newCfg.CheckIntervalMinutes),
			logx.String("schedule", strings.TrimSpace(newCfg.Schedule)),
		)
	}

	if strings.TrimSpace(oldCfg.Telegram.BotToken) != strings.TrimSpace(newCfg.Telegram.BotToken) ||
		oldCfg.Telegram.ChannelID != newCfg.Telegram.ChannelID ||
		strings.TrimSpace(oldCfg.Telegram.APIURL) != strings.TrimSpace(newCfg.Telegram.APIURL) ||
		strings.TrimSpace(oldCfg.Telegram.Timeout) != strings.TrimSpace(newCfg.Telegram.Timeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.BotToken) != ""),
			logx.String("telegram.channel_id", newCfg.Telegram.ChannelID.String()),
		)
	}

	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
	}

	if !reflect.DeepEqual(oldCfg.Catalog, newCfg.Catalog) {
		changed = append(changed, "catalog")
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.StateFile) != strings.TrimSpace(newCfg.StateFile) ||
		!reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}

	return changed, attrs
}

// RequiresRestart reports sections that cannot be applied to a running
// process: the store and the catalog client are built once at startup.
func RequiresRestart(changed []string) bool {
	for _, c := range changed {
		if c == "storage" || c == "catalog" {
			return true
		}
	}
	return false
}

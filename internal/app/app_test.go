package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hftracker/internal/config"
	"hftracker/internal/notifier"
	"hftracker/internal/scan"
	"hftracker/internal/storage"
	"hftracker/internal/tracker"
	logx "hftracker/pkg/logx"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestValidate(t *testing.T) {
	ok := &config.Config{HFUsers: []string{"acme"}, Telegram: config.TelegramConfig{ChannelID: "-100"}}
	assert.NoError(t, validate(context.Background(), ok))

	placeholder := &config.Config{Telegram: config.TelegramConfig{ChannelID: "YOUR_TELEGRAM_CHANNEL_ID"}}
	assert.NoError(t, validate(context.Background(), placeholder))

	assert.Error(t, validate(context.Background(), &config.Config{Telegram: config.TelegramConfig{ChannelID: "my channel"}}))
	assert.Error(t, validate(context.Background(), &config.Config{Schedule: "every tuesday"}))
	assert.Error(t, validate(context.Background(), &config.Config{CheckIntervalMinutes: -5}))
}

func TestMapNotifierConfigDropsChannelWhenUnconfigured(t *testing.T) {
	s := &config.Settings{BotToken: "YOUR_TELEGRAM_BOT_TOKEN", ChannelID: "-100"}
	assert.Empty(t, mapNotifierConfig(s).Channel)

	s.BotToken = "123:abc"
	nc := mapNotifierConfig(s)
	assert.Equal(t, "-100", nc.Channel)
	assert.Equal(t, "HTML", nc.ParseMode)
}

func TestNewFailsOnBadConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := New(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = New(context.Background(), writeConfig(t, dir, `{"hf_users": ["acme"], "unknown": 1}`))
	assert.Error(t, err)
}

func TestNewWithPlaceholderCredentials(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	p := writeConfig(t, dir, `{
  "hf_users": ["acme"],
  "telegram": {"bot_token": "YOUR_TELEGRAM_BOT_TOKEN", "channel_id": "YOUR_TELEGRAM_CHANNEL_ID"},
  "state_file": "`+filepath.ToSlash(statePath)+`",
  "logging": {"level": "error", "console": true}
}`)

	a, err := New(context.Background(), p)
	require.NoError(t, err)
	defer a.Close()
	assert.False(t, a.notif.Configured())
	assert.Equal(t, []string{"acme"}, a.orch.Accounts())

	// Hot reload: new account list and interval flow into the running components.
	prev := a.cfgm.Get()
	next := *prev
	next.HFUsers = []string{"acme", "newco"}
	next.CheckIntervalMinutes = 5
	a.apply(prev, &next)
	assert.Equal(t, []string{"acme", "newco"}, a.orch.Accounts())
	assert.Equal(t, 5*time.Minute, a.settings.Interval)
}

func TestPrintState(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	p := writeConfig(t, dir, `{"hf_users": ["acme"], "telegram": {}, "state_file": "`+filepath.ToSlash(statePath)+`"}`)

	var out bytes.Buffer
	require.NoError(t, PrintState(context.Background(), p, &out))
	assert.Contains(t, out.String(), "no tracked accounts")

	store, err := storage.Open(storage.Config{Path: statePath}, logx.Nop())
	require.NoError(t, err)
	st := tracker.NewState()
	st.Put("acme", tracker.NewSnapshot([]tracker.ArtifactRecord{
		{ID: "acme/a", Downloads: 1500},
		{ID: "acme/b", Downloads: 500},
	}, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, store.Save(context.Background(), st))
	require.NoError(t, store.Close())

	out.Reset()
	require.NoError(t, PrintState(context.Background(), p, &out))
	assert.Contains(t, out.String(), "ACCOUNT")
	assert.Contains(t, out.String(), "acme")
	assert.Contains(t, out.String(), "2,000")
}

func TestStatusLine(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	res := scan.Result{
		FinishedAt: at,
		Checked:    []string{"acme", "beta"},
		Events:     make([]tracker.ChangeEvent, 3),
		Sent:       2,
	}

	assert.Equal(t, "cycle 4 at 2024-05-06T07:08:09Z: 2 accounts, 3 events, 2 alerts sent",
		statusLine(res, 4, 0, nil))

	res.Failed = 1
	hist := []notifier.HistoryItem{
		{At: at, Text: "ok"},
		{At: at.Add(time.Minute), Text: "boom", Err: "alert send timed out"},
	}
	got := statusLine(res, 5, 2, hist)
	assert.Contains(t, got, "cycle 5 at")
	assert.Contains(t, got, ", 1 failed")
	assert.Contains(t, got, "; 2 cycles failed so far")
	assert.Contains(t, got, "; last alert failed at 07:09:09: alert send timed out")

	// A successful latest send hides older failures.
	hist = append(hist, notifier.HistoryItem{At: at.Add(2 * time.Minute), Text: "ok"})
	assert.NotContains(t, statusLine(res, 6, 0, hist), "last alert failed")
}

// Package app wires the tracker together: config, logging, snapshot store,
// catalog client, alert delivery, scan orchestrator and scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hftracker/internal/catalog"
	"hftracker/internal/config"
	"hftracker/internal/notifier"
	"hftracker/internal/runtime/supervisor"
	"hftracker/internal/scan"
	"hftracker/internal/schedule"
	"hftracker/internal/storage"
	"hftracker/internal/transport/telegram"
	logx "hftracker/pkg/logx"
	"hftracker/pkg/systemd"
)

type App struct {
	cfgm     *config.ConfigManager
	settings *config.Settings

	log  logx.Logger
	logs *logx.Service

	store storage.Store
	notif *notifier.Service
	orch  *scan.Orchestrator
	sched *schedule.Scheduler
}

// New loads the config at cfgPath and builds every component. Any error is
// a configuration error and should abort startup.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	// Until the logging section is read, config warnings go to the console.
	cfgm.SetLogger(logx.NewConsole("info").With(logx.String("comp", "config")))
	cfgm.SetValidator(validate)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	s, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	logs, root := logx.New(s.Logging)
	cfgm.SetLogger(root.With(logx.String("comp", "config")))
	log := root.With(logx.String("comp", "app"))

	store, err := storage.Open(mapStorageConfig(s), root.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	state := store.Load(ctx)
	log.Info("state loaded", logx.String("path", s.StoragePath), logx.Int("accounts", len(state.Accounts)))

	cat := catalog.NewClient(mapCatalogOptions(s)...)

	notif := notifier.New(mapNotifierConfig(s), nil, root.With(logx.String("comp", "notifier")))
	if err := setSender(notif, s, root); err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	if len(s.Accounts) == 0 {
		log.Warn("hf_users is empty; nothing to track")
	}
	orch := scan.New(cat, store, state, notif,
		scan.WithAccounts(s.Accounts),
		scan.WithBaseURL(cat.BaseURL()),
		scan.WithLogger(root.With(logx.String("comp", "scan"))),
	)

	a := &App{cfgm: cfgm, settings: s, log: log, logs: logs, store: store, notif: notif, orch: orch}
	a.sched, err = schedule.New(a.cycle, mapScheduleConfig(s), root.With(logx.String("comp", "schedule")))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// setSender builds the Telegram sender when credentials are configured.
func setSender(n *notifier.Service, s *config.Settings, log logx.Logger) error {
	if !telegram.Configured(s.BotToken, s.ChannelID) {
		n.SetSender(nil)
		log.Warn("telegram not configured; alerts will only be logged")
		return nil
	}
	sender, err := telegram.New(mapTelegramConfig(s), log.With(logx.String("comp", "telegram")))
	if err != nil {
		return err
	}
	n.SetSender(sender)
	return nil
}

func (a *App) cycle(ctx context.Context) error {
	res, err := a.orch.RunCycle(ctx)
	total, failed := a.sched.Cycles()
	_, _ = systemd.Status(statusLine(res, total+1, failed, a.notif.Snapshot()))
	return err
}

// statusLine summarizes the latest cycle for `systemctl status`. cycles is
// the number of cycles including the one in res.
func statusLine(res scan.Result, cycles, failedCycles uint64, history []notifier.HistoryItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %d at %s: %d accounts, %d events, %d alerts sent",
		cycles, res.FinishedAt.Format(time.RFC3339), len(res.Checked), len(res.Events), res.Sent)
	if res.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", res.Failed)
	}
	if failedCycles > 0 {
		fmt.Fprintf(&b, "; %d cycles failed so far", failedCycles)
	}
	if n := len(history); n > 0 && history[n-1].Err != "" {
		last := history[n-1]
		fmt.Fprintf(&b, "; last alert failed at %s: %s", last.At.Format(time.TimeOnly), last.Err)
	}
	return b.String()
}

// RunOnce runs a single scan cycle. An interrupt is not an error.
func (a *App) RunOnce(ctx context.Context) error {
	err := a.sched.RunOnce(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Run schedules cycles until ctx is canceled, applying config changes live.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("tracker started",
		logx.Strings("accounts", a.orch.Accounts()),
		logx.Duration("interval", a.settings.Interval),
		logx.String("schedule", a.settings.Cron),
		logx.Bool("alerts", a.notif.Configured()),
	)

	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	sub := a.cfgm.Subscribe(4)
	sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	sup.Go("scheduler", a.sched.Run)

	_, _ = systemd.Ready()

	<-sup.Context().Done()
	_, _ = systemd.Stopping()
	a.log.Info("stopping; waiting for the current cycle to finish")

	// The scheduler never abandons a cycle; wait for it without a deadline.
	err := sup.Stop(context.Background())
	for _, st := range sup.Stats() {
		if st.Restarts > 0 || st.Panics > 0 || st.LastErr != "" {
			a.log.Warn("supervised goroutine summary",
				logx.String("name", st.Name),
				logx.Int("restarts", int(st.Restarts)),
				logx.Int("panics", int(st.Panics)),
				logx.String("last_err", st.LastErr),
			)
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.apply(last, cfg)
			last = cfg
		}
	}
}

// apply pushes a validated config into the running components.
func (a *App) apply(prev, cfg *config.Config) {
	changed, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(changed) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	s, err := cfg.Resolve()
	if err != nil {
		a.log.Warn("invalid config; keeping previous", logx.Err(err))
		return
	}
	_, _ = systemd.Reloading()
	defer func() { _, _ = systemd.Ready() }()

	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("applying config change", fields...)
	if config.RequiresRestart(changed) {
		a.log.Warn("storage or catalog config changed; restart required for changes to take effect")
	}

	a.logs.Apply(s.Logging)
	a.orch.SetAccounts(s.Accounts)
	if err := a.sched.Apply(mapScheduleConfig(s)); err != nil {
		a.log.Warn("invalid schedule; keeping previous", logx.Err(err))
	}
	a.notif.Apply(mapNotifierConfig(s))
	for _, c := range changed {
		if c == "telegram" {
			if err := setSender(a.notif, s, a.log); err != nil {
				a.log.Warn("telegram reconfiguration failed; alerts disabled", logx.Err(err))
				a.notif.SetSender(nil)
			}
		}
	}
	a.settings = s
}

// Close releases the store and flushes logs.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.logs != nil {
		if err := a.logs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logs: %w", err))
		}
	}
	return errors.Join(errs...)
}

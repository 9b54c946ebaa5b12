package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"hftracker/internal/config"
	"hftracker/internal/storage"
	logx "hftracker/pkg/logx"
	"hftracker/pkg/tgui"
)

// PrintState writes a per-account summary of the persisted snapshot to w.
// It only reads the store; no catalog call is made.
func PrintState(ctx context.Context, cfgPath string, w io.Writer) error {
	errlog := logx.NewWriter(os.Stderr, "warn")
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetLogger(errlog.With(logx.String("comp", "config")))
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	s, err := cfg.Resolve()
	if err != nil {
		return err
	}

	store, err := storage.Open(mapStorageConfig(s), errlog)
	if err != nil {
		return err
	}
	defer store.Close()
	state := store.Load(ctx)

	names := state.Names()
	if len(names) == 0 {
		_, err := fmt.Fprintf(w, "no tracked accounts in %s\n", s.StoragePath)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tMODELS\tDOWNLOADS\tLAST CHECKED\tNEWEST")
	for _, name := range names {
		snap := state.Get(name)
		var downloads int64
		newest, newestAt := "-", time.Time{}
		for id, r := range snap.Artifacts {
			downloads += r.Downloads
			if at := r.RecencyKey(); newest == "-" || at.After(newestAt) {
				newest, newestAt = id, at
			}
		}
		checked := "never"
		if !snap.LastChecked.IsZero() {
			checked = snap.LastChecked.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", name, snap.Count, humanize.Comma(downloads), checked, tgui.TruncRunes(newest, 48))
	}
	return tw.Flush()
}

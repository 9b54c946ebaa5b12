// Command hftracker watches Hugging Face accounts and posts new and updated
// models to a Telegram channel.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hftracker/internal/app"
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		once    bool
	)
	root := &cobra.Command{
		Use:           "hftracker",
		Short:         "Track Hugging Face accounts and alert on new or updated models",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if once {
				return a.RunOnce(ctx)
			}
			return a.Run(ctx)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.json", "path to the config file (JSON or YAML)")
	root.Flags().BoolVar(&once, "once", false, "run a single check and exit")

	root.AddCommand(newStateCmd(&cfgPath))
	return root
}

func newStateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print a summary of the persisted tracker state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.PrintState(cmd.Context(), *cfgPath, cmd.OutOrStdout())
		},
	}
}

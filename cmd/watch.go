package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/binarysemaphore/ylex/internal/watch"
)

var watchDebounce = watch.DefaultDebounce

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-extract every time Ylands writes a new export to the log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, newPrompter(cmd))
		if err != nil {
			return err
		}

		// Nobody is at the keyboard between exports.
		force = true
		x, err := newExtractor(cmd, cfg, nil)
		if err != nil {
			return err
		}
		x.dbPath = dbPath

		w, err := watch.New(cfg.LogPath(), watchDebounce, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %q for exports (Ctrl+C to stop)...\n", cfg.LogPath())
		return w.Run(ctx, func(context.Context) error {
			return x.run()
		})
	},
}

func init() {
	watchCmd.Flags().StringVar(&dbPath, "db", "", "Also index each nested scene into this SQLite database")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before a changed log is read")
	rootCmd.AddCommand(watchCmd)
}

package cmd

import (
	"context"
	"fmt"
	"growthwatch/internal/chrono"
	"growthwatch/lib/telemetry"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var runImmediately bool

func init() {
	watchCmd.Flags().BoolVar(&runImmediately, "now", false, "Trigger a run immediately instead of waiting for the schedule.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Runs scrapes on the configured cron schedule until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := readConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.Schedule == "" {
			return fmt.Errorf("no schedule configured")
		}
		err = chrono.ValidateSpec(cfg.Schedule)
		if err != nil {
			return fmt.Errorf("invalid schedule '%s': %w", cfg.Schedule, err)
		}

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		watcher, err := a.watcher()
		if err != nil {
			return err
		}

		telemetry.InstrumentPerfStats(ctx)

		cron := chrono.NewStandardCron(a.tel, a.time.Location())
		err = watcher.Schedule(ctx, cron, cfg.Schedule)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "watching", "schedule", cfg.Schedule, "sources", len(cfg.Sources)+len(cfg.Files))

		if runImmediately {
			go func() {
				_, err := watcher.RunOnce(ctx)
				if err != nil {
					a.tel.ReportBroken("watch.initial", err)
				}
			}()
		}

		<-ctx.Done()
		slog.Info("shutting down")

		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cron.Stop(stopCtx)
		return nil
	},
}

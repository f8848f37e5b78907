package cmd

import (
	"context"
	"encoding/json"
	"growthwatch/lib/osutil"
	"growthwatch/lib/serviceutil"
	"growthwatch/lib/telemetry"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	outputJson bool
)

var rootCmd = &cobra.Command{
	Use:   "growthwatch",
	Short: "growthwatch extracts people and their growth from leaderboard pages and tracks how they change.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
		if verbose {
			slog.DebugContext(cmd.Context(), "verbose logging enabled")
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "Path to the configuration file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging/instrumentation.")
	rootCmd.PersistentFlags().BoolVar(&outputJson, "json", false, "Write output as json instead of a table.")
}

func writeJson(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func Execute() {
	ctx, cancel := osutil.SignalContext(context.Background())
	defer cancel()

	tel, err := telemetry.SetupFromEnv(ctx, "growthwatch")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	defer tel.Shutdown(context.Background())

	err = rootCmd.ExecuteContext(ctx)
	if err != nil {
		tel.Shutdown(context.Background())
		serviceutil.Fatal("growthwatch", err)
	}
}

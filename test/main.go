package main

import (
	"context"
	"errors"
	"fmt"
	"growthwatch/internal/telemetry"
	"growthwatch/lib/osutil"
	libtelemetry "growthwatch/lib/telemetry"
	"growthwatch/test/fuzzing"
	"os"

	"github.com/spf13/cobra"
)

var tel = telemetry.NewSlogAPI()

var (
	path     fuzzing.Path
	minSteps uint64
	maxSteps uint64
)

var rootCmd = &cobra.Command{
	Use:   "test",
	Short: "the growthwatch test runner",
}

var fuzzCmd = &cobra.Command{
	Use:   "fuzz",
	Short: "run a fuzzer until it finds a failure or is interrupted",
}

var fuzzWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "fuzz the watcher, its store and notifier with injected faults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFuzzing(cmd.Context(), fuzzing.WatchProvider{})
	},
}

func init() {
	fuzzCmd.PersistentFlags().VarP(&path, "path", "p", "replay a fuzzer with a given fuzzing path (seed:steps)")
	fuzzCmd.PersistentFlags().Uint64Var(&minSteps, "min-steps", 10, "the minimum amount of steps that must be executed on any given fuzz target")
	fuzzCmd.PersistentFlags().Uint64Var(&maxSteps, "max-steps", 100, "the maximum amount of steps that can be executed on any given fuzz target")

	fuzzCmd.AddCommand(fuzzWatchCmd)
	rootCmd.AddCommand(fuzzCmd)
}

func runFuzzing(ctx context.Context, provider fuzzing.TargetProvider) error {
	f, err := fuzzing.New(tel, provider, minSteps, maxSteps)
	if err != nil {
		return fmt.Errorf("fuzzing.New: %w", err)
	}

	if path.Steps == 0 {
		failed, err := f.Explore(ctx)
		if err != nil {
			return fmt.Errorf("path %s: %w", failed.String(), err)
		}
		return nil
	}

	failures, err := f.RunPath(ctx, path)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	tel.ReportDebug("no failures", "path", path.String())
	return nil
}

func main() {
	libtelemetry.InitSlog(true)

	ctx, cancel := osutil.SignalContext(context.Background())
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		tel.ReportBroken("exec err", err)
		os.Exit(1)
	}
}

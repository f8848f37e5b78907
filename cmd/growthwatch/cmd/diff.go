package cmd

import (
	"context"
	"fmt"
	"growthwatch/internal/notify"
	"growthwatch/internal/snapshot"

	"github.com/spf13/cobra"
)

var (
	diffFrom int64
	diffTo   int64
)

func init() {
	diffCmd.Flags().Int64Var(&diffFrom, "from", 0, "Id of the older run, defaults to the run before --to.")
	diffCmd.Flags().Int64Var(&diffTo, "to", 0, "Id of the newer run, defaults to the latest run.")
	rootCmd.AddCommand(diffCmd)
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Shows the changes between two stored runs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := readConfig(configPath)
		if err != nil {
			return err
		}
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		from, to, err := resolveDiffRuns(ctx, a.store, diffFrom, diffTo)
		if err != nil {
			return err
		}

		changes := snapshot.Compare(from.Records, to.Records)
		if outputJson {
			return writeJson(cmd.OutOrStdout(), changes)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %d -> run %d\n", from.ID, to.ID)
		if changes.Empty() {
			fmt.Fprintln(cmd.OutOrStdout(), "no changes")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), notify.RenderChanges(changes))
		return nil
	},
}

// resolveDiffRuns loads the runs to compare, a zero id picks the latest run
// for `to` and the run stored right before `to` for `from`.
func resolveDiffRuns(ctx context.Context, store snapshot.Store, fromId, toId int64) (from, to snapshot.Run, err error) {
	if toId == 0 {
		latest, ok, err := store.Latest(ctx)
		if err != nil {
			return from, to, err
		}
		if !ok {
			return from, to, fmt.Errorf("no runs stored yet")
		}
		to = latest
	} else {
		to, err = store.Get(ctx, toId)
		if err != nil {
			return from, to, err
		}
	}

	if fromId != 0 {
		from, err = store.Get(ctx, fromId)
		return from, to, err
	}

	history, err := store.History(ctx, 1<<20)
	if err != nil {
		return from, to, err
	}
	for _, run := range history {
		if run.ID < to.ID {
			from, err = store.Get(ctx, run.ID)
			return from, to, err
		}
	}
	return from, to, fmt.Errorf("run %d has no earlier run to compare with", to.ID)
}

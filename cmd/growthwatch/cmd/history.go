package cmd

import (
	"fmt"
	"growthwatch/internal/notify"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists the stored runs, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig(configPath)
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		runs, err := a.store.History(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if outputJson {
			return writeJson(cmd.OutOrStdout(), runs)
		}

		t := notify.NewTable()
		t.AppendHeader(table.Row{"ID", "Time", "Records", "Sources"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.ID,
				run.Time.Format(time.DateTime),
				run.Records,
				strings.Join(run.Sources, "\n"),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

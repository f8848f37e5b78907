package cmd

import (
	"fmt"
	"growthwatch/internal/notify"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetches every configured source once, stores the run and reports what changed.",
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

		watcher, err := a.watcher()
		if err != nil {
			return err
		}
		result, err := watcher.RunOnce(cmd.Context())
		if err != nil && result.RunID == 0 && !result.Skipped {
			return err
		}
		if err != nil {
			a.tel.ReportWarning("scrape", err)
		}

		out := cmd.OutOrStdout()
		if outputJson {
			return writeJson(out, result)
		}
		if result.Skipped {
			fmt.Fprintln(out, "no records found, run was not stored")
			return nil
		}
		fmt.Fprintf(out, "run %d: %d records\n", result.RunID, len(result.Records))
		if !result.Changes.Empty() {
			fmt.Fprintln(out, notify.RenderChanges(result.Changes))
		}
		return nil
	},
}

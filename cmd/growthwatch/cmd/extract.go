package cmd

import (
	"errors"
	"fmt"
	"growthwatch/internal/notify"
	"growthwatch/internal/source"
	"growthwatch/internal/telemetry"
	"growthwatch/lib/extract"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extracts records from the given files (glob patterns are accepted), or stdin when none are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := extract.Default()
		cfg, err := readConfig(configPath)
		if err == nil {
			engine = cfg.engine()
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		var texts []string
		if len(args) == 0 {
			content, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			texts = append(texts, string(content))
		} else {
			src, err := source.NewFileSource(args...)
			if err != nil {
				return err
			}
			blobs, err := source.FetchAll(cmd.Context(), telemetry.NewSlogAPI(), []source.Source{src})
			if err != nil {
				return err
			}
			for _, b := range blobs {
				texts = append(texts, b.Text)
			}
		}

		records := engine.ExtractAll(texts...)
		if outputJson {
			return writeJson(cmd.OutOrStdout(), records)
		}
		fmt.Fprintln(cmd.OutOrStdout(), notify.RenderRecords(records))
		return nil
	},
}

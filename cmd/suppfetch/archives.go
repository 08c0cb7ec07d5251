package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/suppfetch/internal/report"
)

var extractArchivesCmd = &cobra.Command{
	Use:   "extract-archives [run-dir]",
	Short: "Unpack zip archives in a run's documents folder",
	Long: `Extract-archives unpacks every .zip file in the run's documents/ folder into
that same folder. Entry paths are flattened to their file names; entries that
would land outside the folder are skipped, and name clashes get a numeric
suffix (readme_1.txt).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		c := newCollector(cfg.Collector, newPrompter(cmd), false)
		s, err := c.ExtractZipFiles(runDirArg(args, cfg.Collector))
		if err != nil {
			return err
		}
		report.FormatArchives(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractArchivesCmd)
}

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/suppfetch/internal/collect"
	"github.com/pdiddy/suppfetch/internal/report"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [run-dir]",
	Short: "Remove files that are not documents from a run's documents folder",
	Long: `Clean deletes every file in the run's documents/ folder whose extension is not
a document type (` + strings.Join(collect.DefaultDocumentExtensions, " ") + `).
It asks before deleting unless --yes is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		yes, _ := cmd.Flags().GetBool("yes")
		c := newCollector(cfg.Collector, newPrompter(cmd), yes)
		s, err := c.CleanDocumentsDirectory(runDirArg(args, cfg.Collector))
		if err != nil {
			return err
		}
		report.FormatClean(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolP("yes", "y", false, "do not ask before removing files")
	rootCmd.AddCommand(cleanCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/suppfetch/internal/collect"
	"github.com/pdiddy/suppfetch/internal/report"
	"github.com/pdiddy/suppfetch/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show [run-dir]",
	Short: "Show the articles recorded in a run's manifest",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		dir := runDirArg(args, cfg.Collector)
		m, err := collect.ReadManifest(dir)
		if err != nil {
			return err
		}

		ids := make([]types.ArticleID, 0, len(m.Articles))
		records := make(map[types.ArticleID]*types.ArticleRecord, len(m.Articles))
		for _, a := range m.Articles {
			ids = append(ids, a.ID)
			records[a.ID] = &types.ArticleRecord{ID: a.ID, Title: a.Title, Links: a.Links}
		}

		out := cmd.OutOrStdout()
		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return report.FormatJSON(out, ids, records)
		}
		fmt.Fprintf(out, "Run %s: %q via %s at %s\n\n", m.RunID, m.Query, m.Source, m.CreatedAt.Format("2006-01-02 15:04"))
		report.FormatTable(out, ids, records)
		fmt.Fprintf(out, "\n%d articles, %d with links, %d links in %d files\n",
			m.Summary.Articles, m.Summary.WithLinks, m.Summary.TotalLinks, m.Summary.LinkFileCount)
		return nil
	},
}

func init() {
	showCmd.Flags().String("format", "table", "output format: table or json")
	rootCmd.AddCommand(showCmd)
}

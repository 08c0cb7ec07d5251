package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/suppfetch/internal/report"
)

var downloadCmd = &cobra.Command{
	Use:   "download [run-dir]",
	Short: "Download the files listed in a run's link files",
	Long: `Download reads every *_links.txt file in the run directory (default: today's
folder under --output-dir) and fetches each URL into its documents/ folder.
Files already present are skipped. A failed download is reported and the
remaining URLs are still tried.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().Bool("extract", false, "unpack zip archives after downloading")
	downloadCmd.Flags().Bool("clean", false, "remove files that are not documents after downloading")
	downloadCmd.Flags().BoolP("yes", "y", false, "do not ask before removing files")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	dir := runDirArg(args, cfg.Collector)
	yes, _ := cmd.Flags().GetBool("yes")
	c := newCollector(cfg.Collector, newPrompter(cmd), yes)
	out := cmd.OutOrStdout()

	summary, err := c.DownloadAllDocuments(context.Background(), dir)
	if err != nil {
		return err
	}
	report.FormatDownload(out, summary)

	if extract, _ := cmd.Flags().GetBool("extract"); extract {
		a, err := c.ExtractZipFiles(dir)
		if err != nil {
			return err
		}
		report.FormatArchives(out, a)
	}
	if clean, _ := cmd.Flags().GetBool("clean"); clean {
		s, err := c.CleanDocumentsDirectory(dir)
		if err != nil {
			return err
		}
		report.FormatClean(out, s)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d download(s) failed", summary.Failed)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/suppfetch/internal/harvest"
	"github.com/pdiddy/suppfetch/internal/report"
	"github.com/pdiddy/suppfetch/internal/source"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [search phrase...]",
	Short: "Search PMC and save supplementary-material links",
	Long: `Harvest searches the selected source for the phrase, looks up article
titles, extracts supplementary-material links from the full text in batches,
and writes one link file per article into output/<YYYY-MM-DD>/.

With --download the linked files are fetched into the run's documents/
folder; --extract unpacks zip archives there and --clean removes files that
are not documents. When no phrase is given on the command line it is read
from standard input.`,
	RunE: runHarvest,
}

func init() {
	f := harvestCmd.Flags()
	f.Int("max-results", 10, "maximum number of articles to retrieve")
	f.String("source", "ncbi", "source to query ("+strings.Join(source.Names(), ", ")+")")
	f.Int("batch-size", source.DefaultBatchSize, "articles per full-text request")
	f.Duration("batch-delay", 0, "delay between full-text requests (default 1s)")
	f.Bool("open-access", false, "restrict the search to the open-access subset")
	f.String("debug-xml", "", "write the raw XML of each batch to this directory")
	f.Bool("download", false, "download the linked files")
	f.Bool("extract", false, "unpack downloaded zip archives")
	f.Bool("clean", false, "remove downloaded files that are not documents")
	f.BoolP("yes", "y", false, "do not ask before removing files")
	f.String("format", "links", "result listing: links, table or json")

	bindFlag("source.max_results", f.Lookup("max-results"))
	bindFlag("source.name", f.Lookup("source"))
	bindFlag("source.batch_size", f.Lookup("batch-size"))
	bindFlag("source.batch_delay", f.Lookup("batch-delay"))
	bindFlag("source.open_access_only", f.Lookup("open-access"))
	bindFlag("source.debug_dir", f.Lookup("debug-xml"))

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	term := newPrompter(cmd)
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		q, err := term.Line("Enter search phrase (e.g. 'brain MRI'): ")
		if err != nil {
			return err
		}
		query = q
	}
	if query == "" {
		return fmt.Errorf("search phrase cannot be empty")
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "links", "table", "json":
	default:
		return fmt.Errorf("unknown format %q (want links, table or json)", format)
	}

	cfg := loadConfig()
	loadedSecrets.ApplyNCBI(&cfg.Source)

	handler, err := source.New(cfg.Source, logger)
	if err != nil {
		return err
	}

	opts := harvest.Options{Query: query, MaxResults: viper.GetInt("source.max_results")}
	opts.Download, _ = cmd.Flags().GetBool("download")
	opts.Extract, _ = cmd.Flags().GetBool("extract")
	opts.Clean, _ = cmd.Flags().GetBool("clean")
	yes, _ := cmd.Flags().GetBool("yes")

	collector := newCollector(cfg.Collector, term, yes)
	p := &harvest.Pipeline{
		Source:    handler,
		Collector: collector,
		Logger:    logger,
	}
	res, err := p.Run(context.Background(), opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return report.FormatJSON(out, res.IDs, res.Records)
	case "table":
		report.FormatTable(out, res.IDs, res.Records)
	default:
		if len(res.IDs) == 0 {
			fmt.Fprintln(out, "No articles found.")
		} else {
			report.FormatLinks(out, res.IDs, res.Records)
		}
	}
	report.FormatSummary(out, res, collector)
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest runs one end-to-end pass: query a source, persist the
// supplementary links it reports, then optionally download, unpack and
// prune the referenced files.
package harvest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/suppfetch/internal/collect"
	"github.com/pdiddy/suppfetch/internal/logging"
	"github.com/pdiddy/suppfetch/internal/source"
	"github.com/pdiddy/suppfetch/pkg/types"
)

// Options selects what a run does after links are saved.
type Options struct {
	Query      string
	MaxResults int
	Download   bool
	Extract    bool
	Clean      bool
}

// Result collects the outputs of every stage that ran.
type Result struct {
	Query    string
	IDs      []types.ArticleID
	Records  map[types.ArticleID]*types.ArticleRecord
	Run      types.RunContext
	Saved    []types.SavedFile
	Download *collect.DownloadSummary
	Archives *collect.ArchiveSummary
	Clean    *collect.CleanSummary
	Elapsed  time.Duration
}

// WithLinks returns the number of records carrying at least one link.
func (r *Result) WithLinks() int {
	n := 0
	for _, rec := range r.Records {
		if rec.HasLinks() {
			n++
		}
	}
	return n
}

// TotalLinks returns the number of links across all records.
func (r *Result) TotalLinks() int {
	n := 0
	for _, rec := range r.Records {
		n += len(rec.Links)
	}
	return n
}

// Pipeline wires a source handler to a collector.
type Pipeline struct {
	Source    source.Handler
	Collector *collect.Collector
	Logger    zerolog.Logger

	// Now stamps the manifest; time.Now when nil.
	Now func() time.Time
}

// Run executes the pipeline. A search with no hits returns a Result with
// no records and no run directory. Errors are returned only when the run
// directory or manifest cannot be written.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	now := p.Now
	if now == nil {
		now = time.Now
	}
	query := strings.TrimSpace(opts.Query)
	res := &Result{Query: query, Records: map[types.ArticleID]*types.ArticleRecord{}}
	log := p.Logger.With().Str("source", p.Source.Name()).Logger()

	log.Info().Str("query", query).Int("max_results", opts.MaxResults).Msg("searching")
	res.IDs = p.Source.Search(ctx, query, opts.MaxResults)
	if len(res.IDs) == 0 {
		log.Info().Str("query", query).Msg("no articles found, nothing to do")
		res.Elapsed = time.Since(start)
		return res, nil
	}

	res.Records = Merge(res.IDs,
		p.Source.FetchMetadata(ctx, res.IDs),
		p.Source.FetchSupplementaryMaterials(ctx, res.IDs),
	)

	links := make(map[types.ArticleID][]string, len(res.Records))
	for id, rec := range res.Records {
		if rec.HasLinks() {
			links[id] = rec.Links
		}
	}

	run, saved, err := p.Collector.BatchSaveLinks(links, p.Source.Name())
	if err != nil {
		return res, fmt.Errorf("saving links: %w", err)
	}
	res.Run, res.Saved = run, saved
	log = logging.WithRun(p.Logger, run.ID, p.Source.Name())

	manifest := collect.NewManifest(run, query, res.Records, saved, now())
	if err := collect.WriteManifest(run.Dir, manifest); err != nil {
		return res, err
	}
	log.Info().
		Int("articles", len(res.Records)).
		Int("with_links", res.WithLinks()).
		Int("links", res.TotalLinks()).
		Str("dir", run.Dir).
		Msg("links saved")

	if opts.Download {
		d, err := p.Collector.DownloadAllDocuments(ctx, run.Dir)
		if err != nil {
			log.Error().Err(err).Msg("download stage failed")
		} else {
			res.Download = &d
		}
	}
	if opts.Extract {
		a, err := p.Collector.ExtractZipFiles(run.Dir)
		if err != nil {
			log.Error().Err(err).Msg("extract stage failed")
		} else {
			res.Archives = &a
		}
	}
	if opts.Clean {
		c, err := p.Collector.CleanDocumentsDirectory(run.Dir)
		if err != nil {
			log.Error().Err(err).Msg("clean stage failed")
		} else {
			res.Clean = &c
		}
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// Merge builds one record per searched ID from the metadata and link maps.
// Keys of the result are exactly ids; entries of either map for other IDs
// are dropped.
func Merge(ids []types.ArticleID, meta map[types.ArticleID]*types.ArticleRecord, links map[types.ArticleID][]string) map[types.ArticleID]*types.ArticleRecord {
	records := make(map[types.ArticleID]*types.ArticleRecord, len(ids))
	for _, id := range ids {
		rec := &types.ArticleRecord{ID: id, Title: types.UntitledArticle, Links: []string{}}
		if m, ok := meta[id]; ok && m != nil && m.Title != "" {
			rec.Title = m.Title
		}
		if l := links[id]; len(l) > 0 {
			rec.Links = append(rec.Links, l...)
		}
		records[id] = rec
	}
	return records
}

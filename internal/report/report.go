// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders harvest results for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/pdiddy/suppfetch/internal/collect"
	"github.com/pdiddy/suppfetch/internal/harvest"
	"github.com/pdiddy/suppfetch/pkg/types"
)

const (
	titleWidth = 60
	ruleWidth  = 80
)

// orderedIDs returns ids in search order, followed by any record keys the
// search order does not mention, sorted.
func orderedIDs(ids []types.ArticleID, records map[types.ArticleID]*types.ArticleRecord) []types.ArticleID {
	seen := make(map[types.ArticleID]bool, len(ids))
	out := make([]types.ArticleID, 0, len(records))
	for _, id := range ids {
		if _, ok := records[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	var rest []types.ArticleID
	for id := range records {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// FormatLinks writes every article that has supplementary material with its
// links beneath it.
func FormatLinks(w io.Writer, ids []types.ArticleID, records map[types.ArticleID]*types.ArticleRecord) {
	found := false
	for _, id := range orderedIDs(ids, records) {
		rec := records[id]
		if !rec.HasLinks() {
			continue
		}
		found = true
		fmt.Fprintf(w, "%s (PMC%s)\n", rec.Title, id)
		for _, l := range rec.Links {
			fmt.Fprintf(w, "   %s\n", l)
		}
		fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	}
	if !found {
		fmt.Fprintln(w, "No supplementary materials found for the retrieved articles.")
	}
}

// FormatTable writes one row per article: ID, title and link count.
// Titles are truncated by display width so wide scripts stay aligned.
func FormatTable(w io.Writer, ids []types.ArticleID, records map[types.ArticleID]*types.ArticleRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return
	}

	fmt.Fprintf(w, "%-10s  %s  %s\n", "ID", pad("Title", titleWidth), "Links")
	fmt.Fprintln(w, strings.Repeat("-", titleWidth+20))
	for _, id := range orderedIDs(ids, records) {
		rec := records[id]
		fmt.Fprintf(w, "%-10s  %s  %5d\n", id, pad(truncate(rec.Title, titleWidth), titleWidth), len(rec.Links))
	}
}

// FormatJSON writes the records as indented JSON in search order.
func FormatJSON(w io.Writer, ids []types.ArticleID, records map[types.ArticleID]*types.ArticleRecord) error {
	out := make([]*types.ArticleRecord, 0, len(records))
	for _, id := range orderedIDs(ids, records) {
		out = append(out, records[id])
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// LinkSummarizer prints the link files saved into a run directory.
// *collect.Collector implements it.
type LinkSummarizer interface {
	PrintSummary(w io.Writer, run types.RunContext)
}

// FormatSummary writes run totals and the outcome of every stage that ran.
// The link-file section comes from links, the collector that saved them.
func FormatSummary(w io.Writer, res *harvest.Result, links LinkSummarizer) {
	fmt.Fprintf(w, "\nQuery:        %s\n", res.Query)
	fmt.Fprintf(w, "Articles:     %d (%d with supplementary material)\n", len(res.Records), res.WithLinks())
	if res.Run.Dir != "" {
		links.PrintSummary(w, res.Run)
	}
	if res.Download != nil {
		FormatDownload(w, *res.Download)
	}
	if res.Archives != nil {
		FormatArchives(w, *res.Archives)
	}
	if res.Clean != nil {
		FormatClean(w, *res.Clean)
	}
	if res.Elapsed > 0 {
		fmt.Fprintf(w, "Elapsed:      %s\n", res.Elapsed.Round(10*time.Millisecond))
	}
}

// FormatDownload writes download counts and lists failures.
func FormatDownload(w io.Writer, s collect.DownloadSummary) {
	fmt.Fprintf(w, "Downloads:    %d total, %d downloaded, %d already present, %d failed\n",
		s.Total, s.Success, s.Skipped, s.Failed)
	for _, r := range s.Results {
		if !r.OK() {
			fmt.Fprintf(w, "  failed: %s (%s)\n", r.URL, r.Reason)
		}
	}
}

// FormatArchives writes archive extraction counts.
func FormatArchives(w io.Writer, s collect.ArchiveSummary) {
	fmt.Fprintf(w, "Archives:     %d processed, %d files extracted", s.Archives, s.Extracted)
	if s.Rejected > 0 {
		fmt.Fprintf(w, ", %d unsafe entries rejected", s.Rejected)
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, ", %d unreadable", s.Failed)
	}
	fmt.Fprintln(w)
}

// FormatClean writes cleanup counts.
func FormatClean(w io.Writer, s collect.CleanSummary) {
	switch {
	case s.Declined:
		fmt.Fprintf(w, "Cleanup:      declined, %d files left in place\n", len(s.Candidates))
	case len(s.Candidates) == 0:
		fmt.Fprintf(w, "Cleanup:      nothing to remove (%d documents)\n", s.Kept)
	default:
		fmt.Fprintf(w, "Cleanup:      %d removed, %d kept", s.Removed, s.Kept)
		if s.Failed > 0 {
			fmt.Fprintf(w, ", %d could not be removed", s.Failed)
		}
		fmt.Fprintln(w)
	}
}

// truncate shortens s to at most max display columns, marking the cut.
func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}

// pad right-fills s with spaces to width display columns.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

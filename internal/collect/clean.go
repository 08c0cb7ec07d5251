// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/suppfetch/pkg/types"
)

// CleanSummary holds the outcome of a documents-directory cleanup.
type CleanSummary struct {
	Kept     int
	Removed  int
	Failed   int
	Declined bool

	// Candidates lists the files selected for removal.
	Candidates []string
}

// IsDocument reports whether name has an extension on the allow-list.
func (c *Collector) IsDocument(name string) bool {
	return c.documentExts[strings.ToLower(filepath.Ext(name))]
}

// CleanDocumentsDirectory removes every regular file in dir/documents whose
// extension is not on the document allow-list. The confirm callback is asked
// once with the number of files; a "no" leaves everything in place.
func (c *Collector) CleanDocumentsDirectory(dir string) (CleanSummary, error) {
	var summary CleanSummary
	docs := filepath.Join(dir, types.DocumentsDirName)

	entries, err := os.ReadDir(docs)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Warn().Str("dir", docs).Msg("documents directory not found, nothing to clean")
			return summary, nil
		}
		return summary, fmt.Errorf("reading %s: %w", docs, err)
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if c.IsDocument(e.Name()) {
			summary.Kept++
			continue
		}
		summary.Candidates = append(summary.Candidates, filepath.Join(docs, e.Name()))
	}

	if len(summary.Candidates) == 0 {
		c.logger.Info().Int("kept", summary.Kept).Msg("no non-document files to remove")
		return summary, nil
	}

	prompt := fmt.Sprintf("Remove %d non-document files from %s?", len(summary.Candidates), docs)
	if !c.confirm(prompt) {
		summary.Declined = true
		c.logger.Info().Int("candidates", len(summary.Candidates)).Msg("cleanup declined")
		return summary, nil
	}

	for _, path := range summary.Candidates {
		if err := os.Remove(path); err != nil {
			summary.Failed++
			c.logger.Error().Err(err).Str("path", path).Msg("cannot remove file")
			continue
		}
		summary.Removed++
	}
	c.logger.Info().Int("removed", summary.Removed).Int("kept", summary.Kept).Int("failed", summary.Failed).Msg("cleanup complete")
	return summary, nil
}

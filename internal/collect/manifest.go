// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/suppfetch/pkg/types"
)

// ManifestFileName is written into every run directory.
const ManifestFileName = "manifest.yaml"

// Manifest is the on-disk record of one harvest run: what was asked, which
// articles came back and where their links were written. It lets a run be
// inspected later without re-querying the source.
type Manifest struct {
	RunID     string            `yaml:"run_id"`
	Query     string            `yaml:"query"`
	Source    string            `yaml:"source"`
	CreatedAt time.Time         `yaml:"created_at"`
	Articles  []ManifestArticle `yaml:"articles"`
	Summary   ManifestSummary   `yaml:"summary"`
}

// ManifestArticle describes one article returned by the search.
type ManifestArticle struct {
	ID       types.ArticleID `yaml:"id"`
	Title    string          `yaml:"title"`
	LinkFile string          `yaml:"link_file,omitempty"`
	Links    []string        `yaml:"links,omitempty"`
}

// ManifestSummary stores run totals.
type ManifestSummary struct {
	Articles      int `yaml:"articles"`
	WithLinks     int `yaml:"with_links"`
	TotalLinks    int `yaml:"total_links"`
	LinkFileCount int `yaml:"link_files"`
}

// NewManifest builds a manifest from the run's records and saved files.
// Articles are listed in ascending ID order.
func NewManifest(run types.RunContext, query string, records map[types.ArticleID]*types.ArticleRecord, saved []types.SavedFile, now time.Time) Manifest {
	files := make(map[types.ArticleID]string, len(saved))
	for _, s := range saved {
		files[s.ArticleID] = filepath.Base(s.Path)
	}

	ids := make([]types.ArticleID, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	m := Manifest{
		RunID:     run.ID,
		Query:     query,
		Source:    run.SourcePrefix,
		CreatedAt: now,
	}
	for _, id := range ids {
		rec := records[id]
		m.Articles = append(m.Articles, ManifestArticle{
			ID:       id,
			Title:    rec.Title,
			LinkFile: files[id],
			Links:    rec.Links,
		})
		if rec.HasLinks() {
			m.Summary.WithLinks++
			m.Summary.TotalLinks += len(rec.Links)
		}
	}
	m.Summary.Articles = len(ids)
	m.Summary.LinkFileCount = len(saved)
	return m
}

// WriteManifest saves m as dir/manifest.yaml.
func WriteManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFileName)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads dir/manifest.yaml.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

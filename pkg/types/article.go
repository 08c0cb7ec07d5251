// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the suppfetch pipeline:
// article records produced by source handlers, per-run bookkeeping written by
// the collector, and the configuration structs for every stage.
package types

// UntitledArticle is the title given to records the summary endpoint did not
// describe.
const UntitledArticle = "Title Not Available"

// ArticleID is the upstream repository's identifier for a publication
// (for PMC, the numeric uid without the "PMC" prefix).
type ArticleID = string

// ArticleRecord holds the metadata and discovered supplementary links for one
// article returned by a search.
type ArticleRecord struct {
	// ID identifies the article within the upstream repository.
	ID ArticleID `json:"id" yaml:"id"`

	// Title is the article title, or UntitledArticle when absent.
	Title string `json:"title" yaml:"title"`

	// Links lists supplementary-material URLs in extraction order.
	Links []string `json:"links" yaml:"links"`
}

// HasLinks reports whether any supplementary links were found.
func (r *ArticleRecord) HasLinks() bool {
	return r != nil && len(r.Links) > 0
}

// SavedFile records one link file written during a run.
type SavedFile struct {
	ArticleID ArticleID `json:"article_id" yaml:"article_id"`
	Path      string    `json:"path" yaml:"path"`
	LinkCount int       `json:"link_count" yaml:"link_count"`
}

// DownloadStatus classifies the outcome of a single download.
type DownloadStatus string

const (
	DownloadSuccess DownloadStatus = "success"
	DownloadSkipped DownloadStatus = "skipped"
	DownloadFailure DownloadStatus = "failure"
)

// DownloadResult is the per-URL outcome of a bulk download.
type DownloadResult struct {
	// URL is the link that was requested.
	URL string `json:"url" yaml:"url"`

	// Path is the local file written (or found already present). Empty on failure.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Status is success, skipped or failure.
	Status DownloadStatus `json:"status" yaml:"status"`

	// Reason explains a failure or skip.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Bytes is the number of bytes written.
	Bytes int64 `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

// OK reports whether the file is available locally after the attempt.
func (r DownloadResult) OK() bool {
	return r.Status == DownloadSuccess || r.Status == DownloadSkipped
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"time"
)

// DocumentsDirName is the subdirectory of a run directory holding downloads.
const DocumentsDirName = "documents"

// RunContext identifies one pipeline run and the directory it writes into.
// Collector operations take it explicitly instead of remembering the last
// directory they created.
type RunContext struct {
	// ID correlates log lines and the manifest of one run.
	ID string `json:"id" yaml:"id"`

	// Dir is the date-keyed output directory (e.g. "output/2026-10-19").
	Dir string `json:"dir" yaml:"dir"`

	// Date is the calendar date the directory is keyed by.
	Date time.Time `json:"date" yaml:"date"`

	// SourcePrefix is prepended to link file names (e.g. "ncbi").
	SourcePrefix string `json:"source_prefix,omitempty" yaml:"source_prefix,omitempty"`
}

// DocumentsDir returns the download directory for the run.
func (r RunContext) DocumentsDir() string {
	return filepath.Join(r.Dir, DocumentsDirName)
}

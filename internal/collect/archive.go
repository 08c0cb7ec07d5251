// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/suppfetch/pkg/types"
)

// ArchiveSummary holds the outcome of zip extraction.
type ArchiveSummary struct {
	Archives  int
	Extracted int
	Rejected  int
	Failed    int
	Files     []string
}

// ExtractZipFiles unpacks every .zip in dir/documents into the same folder,
// flattening entry paths to their base names. Entries that would escape the
// folder are rejected; name collisions get a numeric suffix. A corrupt
// archive is counted as failed and the remaining archives are still
// processed.
func (c *Collector) ExtractZipFiles(dir string) (ArchiveSummary, error) {
	var summary ArchiveSummary
	docs := filepath.Join(dir, types.DocumentsDirName)

	if info, err := os.Stat(docs); err != nil || !info.IsDir() {
		c.logger.Warn().Str("dir", docs).Msg("documents directory not found, nothing to extract")
		return summary, nil
	}
	archives, err := filepath.Glob(filepath.Join(docs, "*.zip"))
	if err != nil {
		return summary, fmt.Errorf("listing archives in %s: %w", docs, err)
	}
	sort.Strings(archives)

	for _, archive := range archives {
		summary.Archives++
		c.extractArchive(archive, docs, &summary)
	}

	if summary.Archives == 0 {
		c.logger.Info().Str("dir", docs).Msg("no archives found")
	}
	return summary, nil
}

// extractArchive unpacks one archive into docs and adds its outcome to
// summary.
func (c *Collector) extractArchive(archive, docs string, summary *ArchiveSummary) {
	log := c.logger.With().Str("archive", filepath.Base(archive)).Logger()

	zr, err := zip.OpenReader(archive)
	if zr != nil {
		defer zr.Close()
	}
	// With zipinsecurepath=0 the reader is still usable; checkEntry filters
	// the offending entries.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		summary.Failed++
		log.Error().Err(err).Msg("cannot open archive")
		return
	}

	extracted := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := checkEntry(f.Name); err != nil {
			summary.Rejected++
			log.Warn().Err(err).Msg("skipping archive entry")
			continue
		}
		dest, err := extractEntry(f, docs)
		if err != nil {
			log.Error().Err(err).Str("entry", f.Name).Msg("cannot extract entry")
			continue
		}
		extracted++
		summary.Files = append(summary.Files, dest)
	}

	summary.Extracted += extracted
	log.Info().Int("files", extracted).Msg("archive extracted")
}

// checkEntry rejects entry names that are absolute, carry a volume name, or
// contain a parent-directory element.
func checkEntry(name string) error {
	slashed := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" ||
		(len(slashed) >= 2 && slashed[1] == ':') {
		return fmt.Errorf("%w: absolute path %q", ErrUnsafeEntry, name)
	}
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return fmt.Errorf("%w: parent reference in %q", ErrUnsafeEntry, name)
		}
	}
	return nil
}

// extractEntry writes one archive entry into dir under its base name and
// returns the path written.
func extractEntry(f *zip.File, dir string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("%w: empty name %q", ErrUnsafeEntry, f.Name)
	}
	dest := uniquePath(dir, base)

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("opening entry: %w", err)
	}
	defer rc.Close()

	if _, err := writeStream(dest, rc); err != nil {
		return "", err
	}
	return dest, nil
}

// uniquePath returns dir/name, or dir/<stem>_<n><ext> for the smallest n
// that does not exist yet.
func uniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); os.IsNotExist(err) {
		return candidate
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

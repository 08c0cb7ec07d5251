// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pdiddy/suppfetch/internal/httputil"
	"github.com/pdiddy/suppfetch/pkg/types"
)

// DownloadSummary holds the outcome of a bulk download.
type DownloadSummary struct {
	Total   int
	Success int
	Skipped int
	Failed  int
	Results []types.DownloadResult
}

// Succeeded returns the number of URLs whose file is available locally.
func (s DownloadSummary) Succeeded() int {
	return s.Success + s.Skipped
}

func (s *DownloadSummary) record(r types.DownloadResult) {
	s.Total++
	switch r.Status {
	case types.DownloadSuccess:
		s.Success++
	case types.DownloadSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// DownloadAllDocuments downloads every URL listed in the link files of dir
// into dir/documents. Files already present are skipped. A failed download
// is recorded and the next URL is tried.
func (c *Collector) DownloadAllDocuments(ctx context.Context, dir string) (DownloadSummary, error) {
	var summary DownloadSummary

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		c.logger.Warn().Str("dir", dir).Msg("run directory not found, nothing to download")
		return summary, nil
	}
	linkFiles, err := LinkFiles(dir)
	if err != nil {
		return summary, fmt.Errorf("listing link files in %s: %w", dir, err)
	}
	if len(linkFiles) == 0 {
		c.logger.Warn().Str("dir", dir).Msg("no link files found")
		return summary, nil
	}

	docs := filepath.Join(dir, types.DocumentsDirName)
	if err := os.MkdirAll(docs, 0o755); err != nil {
		return summary, fmt.Errorf("creating documents directory %s: %w", docs, err)
	}

	for _, lf := range linkFiles {
		links, err := ReadLinkFile(lf)
		if err != nil {
			c.logger.Error().Err(err).Str("path", lf).Msg("cannot read link file")
			continue
		}
		name := filepath.Base(lf)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		referer := c.articlePage(strings.TrimSuffix(name, linkFileSuffix))
		visited := false

		for i, link := range links {
			file := FileNameForURL(link, stem, i+1)
			dest := filepath.Join(docs, file)
			log := c.logger.With().Str("url", link).Str("file", file).Logger()

			if _, err := os.Stat(dest); err == nil {
				log.Info().Msg("already downloaded, skipping")
				summary.record(types.DownloadResult{URL: link, Path: dest, Status: types.DownloadSkipped, Reason: "file exists"})
				continue
			}

			if !visited && referer != "" {
				c.visit(ctx, referer, log)
				visited = true
			}

			n, err := c.downloadFile(ctx, link, dest, referer)
			if err != nil {
				log.Error().Err(err).Msg("download failed")
				summary.record(types.DownloadResult{URL: link, Status: types.DownloadFailure, Reason: err.Error()})
				continue
			}
			log.Info().Int64("bytes", n).Msg("downloaded")
			summary.record(types.DownloadResult{URL: link, Path: dest, Status: types.DownloadSuccess, Bytes: n})
		}
	}

	c.logger.Info().
		Int("total", summary.Total).
		Int("success", summary.Success).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("download complete")
	return summary, nil
}

// FileNameForURL derives a local file name from the last path element of
// rawURL. When that element is too short to be meaningful a name is
// synthesized from the link file stem and the link's 1-based position.
func FileNameForURL(rawURL, stem string, n int) string {
	var base string
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	base = strings.NewReplacer("\\", "_", ":", "_").Replace(base)
	if len(base) < 3 || base == "." || base == "/" || strings.Trim(base, ".") == "" {
		return fmt.Sprintf("document_%s_%d.bin", stem, n)
	}
	return base
}

// articlePage returns the landing page an article's downloads are referred
// from, or "" when key (<prefix>_<id>) carries no numeric article ID.
func (c *Collector) articlePage(key string) string {
	i := strings.LastIndex(key, "_")
	id := key[i+1:]
	if id == "" || c.articlePageBase == "" {
		return ""
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return c.articlePageBase + "PMC" + id + "/"
}

// visit loads the article page so the session jar holds whatever cookies
// the asset server expects. Failures are logged and ignored.
func (c *Collector) visit(ctx context.Context, page string, log zerolog.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		log.Warn().Err(err).Str("referer", page).Msg("cannot build article page request")
		return
	}
	httputil.SetBrowserHeaders(req, "")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("referer", page).Msg("article page visit failed")
		return
	}
	body := httputil.IdleTimeoutBody(resp.Body, c.timeout, cancel)
	io.Copy(io.Discard, body)
	body.Close()
}

// downloadFile fetches rawURL to dest through a temp file. A short HTML
// response is kept next to dest as error_<name>.html and reported as
// ErrHTMLErrorPage. The client bounds the wait for response headers; the
// body may take as long as it needs while bytes keep arriving.
func (c *Collector) downloadFile(ctx context.Context, rawURL, dest, referer string) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	httputil.SetBrowserHeaders(req, referer)

	resp, err := httputil.Do(ctx, c.client, c.throttle, req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request: %w", err)
	}
	body := httputil.IdleTimeoutBody(resp.Body, c.timeout, cancel)
	defer body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w %d", ErrHTTPStatus, resp.StatusCode)
	}

	if isHTML(resp.Header.Get("Content-Type")) {
		// A body shorter than the limit has been read in full.
		head, err := io.ReadAll(io.LimitReader(body, c.minHTMLBytes))
		if err != nil {
			return 0, fmt.Errorf("reading response: %w", err)
		}
		if int64(len(head)) < c.minHTMLBytes {
			return 0, c.keepErrorPage(dest, head)
		}
		return writeStream(dest, io.MultiReader(bytes.NewReader(head), body))
	}
	return writeStream(dest, body)
}

// keepErrorPage saves a short HTML response for inspection and returns the
// error describing it.
func (c *Collector) keepErrorPage(dest string, page []byte) error {
	errPath := filepath.Join(filepath.Dir(dest), "error_"+filepath.Base(dest)+".html")
	if err := os.WriteFile(errPath, page, 0o644); err != nil {
		c.logger.Warn().Err(err).Str("path", errPath).Msg("cannot keep error page")
	}
	if title := pageTitle(page); title != "" {
		return fmt.Errorf("%w (%d bytes): %q", ErrHTMLErrorPage, len(page), title)
	}
	return fmt.Errorf("%w (%d bytes)", ErrHTMLErrorPage, len(page))
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(contentType), "text/html")
	}
	return mt == "text/html"
}

// pageTitle returns the trimmed <title> of an HTML document.
func pageTitle(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// writeStream copies r to a temp file beside dest and renames it into place.
func writeStream(dest string, r io.Reader) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), tempFilePattern)
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

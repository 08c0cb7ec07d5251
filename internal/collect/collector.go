// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect persists supplementary links and works the files they
// point to. Link files land in a date-keyed run directory; downloads,
// archive extraction and cleanup operate on that directory's documents/
// subfolder.
//
// Per-item failures are logged and counted, never returned. Only setup
// errors (a run directory that cannot be created) surface as errors.
package collect

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/suppfetch/internal/extract"
	"github.com/pdiddy/suppfetch/internal/httputil"
	"github.com/pdiddy/suppfetch/pkg/types"
)

const (
	dateFmt         = "2006-01-02"
	linkFileSuffix  = "_links.txt"
	summaryFileCap  = 10
	defaultBaseDir  = "output"
	defaultTimeout  = 30 * time.Second
	defaultDelay    = 500 * time.Millisecond
	defaultMinHTML  = 5120
	defaultPrefix   = "ncbi"
	tempFilePattern = ".suppfetch-*.tmp"
)

var (
	// ErrHTMLErrorPage marks a download that returned a short HTML page
	// instead of the requested file.
	ErrHTMLErrorPage = errors.New("server returned an HTML error page")

	// ErrHTTPStatus marks a download answered with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrUnsafeEntry marks an archive entry whose path escapes the
	// extraction directory.
	ErrUnsafeEntry = errors.New("unsafe archive entry")
)

// DefaultDocumentExtensions is the allow-list kept by cleanup.
var DefaultDocumentExtensions = []string{
	".pdf", ".doc", ".docx", ".txt", ".rtf", ".odt",
	".xls", ".xlsx", ".csv", ".ppt", ".pptx",
}

// ConfirmFunc asks the operator a yes/no question.
type ConfirmFunc func(prompt string) bool

// Option customizes a Collector.
type Option func(*Collector)

// WithConfirm sets the callback consulted before cleanup deletes files.
func WithConfirm(confirm ConfirmFunc) Option {
	return func(c *Collector) { c.confirm = confirm }
}

// WithClock replaces the time source used to key run directories.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithArticlePageBase sets the root used to build article landing pages
// that downloads are referred from.
func WithArticlePageBase(base string) Option {
	return func(c *Collector) { c.articlePageBase = base }
}

// Collector writes link files and manages the documents of a run.
type Collector struct {
	baseDir         string
	logger          zerolog.Logger
	client          *http.Client
	throttle        *httputil.Throttle
	timeout         time.Duration
	minHTMLBytes    int64
	documentExts    map[string]bool
	articlePageBase string
	confirm         ConfirmFunc
	now             func() time.Time

	mu    sync.Mutex
	saved []types.SavedFile
}

// New returns a Collector. Zero-valued config fields take defaults. Without
// WithConfirm, cleanup never deletes anything.
func New(cfg types.CollectorConfig, logger zerolog.Logger, opts ...Option) *Collector {
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultBaseDir
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.DownloadDelay < 0 {
		cfg.DownloadDelay = 0
	} else if cfg.DownloadDelay == 0 {
		cfg.DownloadDelay = defaultDelay
	}
	if cfg.MinHTMLBytes <= 0 {
		cfg.MinHTMLBytes = defaultMinHTML
	}
	if len(cfg.DocumentExtensions) == 0 {
		cfg.DocumentExtensions = DefaultDocumentExtensions
	}

	exts := make(map[string]bool, len(cfg.DocumentExtensions))
	for _, e := range cfg.DocumentExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	c := &Collector{
		baseDir:         cfg.OutputDir,
		logger:          logger.With().Str("component", "collector").Logger(),
		client:          httputil.NewSessionClient(cfg.Timeout),
		throttle:        httputil.NewThrottle(cfg.DownloadDelay),
		timeout:         cfg.Timeout,
		minHTMLBytes:    cfg.MinHTMLBytes,
		documentExts:    exts,
		articlePageBase: extract.PMCAssetBase,
		confirm:         func(string) bool { return false },
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseDir returns the directory run folders are created under.
func (c *Collector) BaseDir() string { return c.baseDir }

// CreateDateFolder creates base/<YYYY-MM-DD> for today and returns a fresh
// RunContext for it. An empty base uses the configured output directory.
// Calling it twice on the same day reuses the directory.
func (c *Collector) CreateDateFolder(base string) (types.RunContext, error) {
	if base == "" {
		base = c.baseDir
	}
	now := c.now()
	dir := filepath.Join(base, now.Format(dateFmt))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.RunContext{}, fmt.Errorf("creating run directory %s: %w", dir, err)
	}
	run := types.RunContext{
		ID:   uuid.NewString(),
		Dir:  dir,
		Date: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
	}
	c.logger.Debug().Str("run_id", run.ID).Str("dir", dir).Msg("run directory ready")
	return run, nil
}

// LinkFileName returns the link file name for one article.
func LinkFileName(prefix string, id types.ArticleID) string {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + "_" + id + linkFileSuffix
}

// SaveLinksToFile writes links, one per line, to the article's link file in
// run.Dir. An empty link list writes nothing and reports ok=false.
func (c *Collector) SaveLinksToFile(run types.RunContext, id types.ArticleID, links []string) (path string, ok bool, err error) {
	log := c.logger.With().Str("run_id", run.ID).Str("article_id", id).Logger()
	if len(links) == 0 {
		log.Info().Msg("no links to save")
		return "", false, nil
	}

	var b strings.Builder
	for _, l := range links {
		b.WriteString(l)
		b.WriteByte('\n')
	}

	path = filepath.Join(run.Dir, LinkFileName(run.SourcePrefix, id))
	if err := writeFileAtomic(path, []byte(b.String())); err != nil {
		log.Error().Err(err).Str("path", path).Msg("cannot write link file")
		return "", false, fmt.Errorf("writing link file for %s: %w", id, err)
	}

	c.mu.Lock()
	c.saved = append(c.saved, types.SavedFile{ArticleID: id, Path: path, LinkCount: len(links)})
	c.mu.Unlock()

	log.Info().Str("path", path).Int("links", len(links)).Msg("saved links")
	return path, true, nil
}

// BatchSaveLinks creates today's run directory and saves a link file for
// every article with links, in ascending ID order. A write failure for one
// article is logged and does not stop the rest.
func (c *Collector) BatchSaveLinks(mapping map[types.ArticleID][]string, prefix string) (types.RunContext, []types.SavedFile, error) {
	run, err := c.CreateDateFolder("")
	if err != nil {
		return types.RunContext{}, nil, err
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	run.SourcePrefix = prefix

	ids := make([]types.ArticleID, 0, len(mapping))
	for id := range mapping {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var saved []types.SavedFile
	for _, id := range ids {
		path, ok, err := c.SaveLinksToFile(run, id, mapping[id])
		if err != nil || !ok {
			continue
		}
		saved = append(saved, types.SavedFile{ArticleID: id, Path: path, LinkCount: len(mapping[id])})
	}
	c.logger.Info().Str("run_id", run.ID).Int("files", len(saved)).Str("dir", run.Dir).Msg("link files saved")
	return run, saved, nil
}

// Saved returns every link file written by this collector.
func (c *Collector) Saved() []types.SavedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.SavedFile(nil), c.saved...)
}

// PrintSummary writes the link files saved into run.Dir. Per-file detail
// is listed only for small runs.
func (c *Collector) PrintSummary(w io.Writer, run types.RunContext) {
	var files []types.SavedFile
	for _, s := range c.Saved() {
		if filepath.Dir(s.Path) == filepath.Clean(run.Dir) {
			files = append(files, s)
		}
	}
	WriteSummary(w, run.Dir, files)
}

// WriteSummary formats a link-file summary.
func WriteSummary(w io.Writer, dir string, files []types.SavedFile) {
	total := 0
	for _, f := range files {
		total += f.LinkCount
	}
	fmt.Fprintf(w, "Files saved:  %d\n", len(files))
	fmt.Fprintf(w, "Total links:  %d\n", total)
	if len(files) > 0 && len(files) <= summaryFileCap {
		for _, f := range files {
			fmt.Fprintf(w, "  %s (%d links)\n", filepath.Base(f.Path), f.LinkCount)
		}
	}
	fmt.Fprintf(w, "Output:       %s\n", dir)
}

// LinkFiles returns the link files in dir, sorted by name.
func LinkFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+linkFileSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadLinkFile returns the non-blank lines of a link file.
func ReadLinkFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var links []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			links = append(links, line)
		}
	}
	return links, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

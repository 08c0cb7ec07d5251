// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/suppfetch/pkg/types"
)

// writeLinkFile creates dir/<stem>_links.txt with one URL per line.
func writeLinkFile(t *testing.T, dir, stem string, links ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	body := strings.Join(links, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, stem+linkFileSuffix), []byte(body), 0o644))
}

func TestFileNameForURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plain file", "https://x.org/pmc/articles/PMC1/bin/supp1.pdf", "supp1.pdf"},
		{"query ignored", "https://x.org/files/data.csv?download=1", "data.csv"},
		{"escaped", "https://x.org/files/my%20table.xlsx", "my table.xlsx"},
		{"short name", "https://x.org/a/ab", "document_ncbi_7_links_3.bin"},
		{"trailing slash", "https://x.org/", "document_ncbi_7_links_3.bin"},
		{"no path", "https://x.org", "document_ncbi_7_links_3.bin"},
		{"dots", "https://x.org/a/...", "document_ncbi_7_links_3.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileNameForURL(tt.url, "ncbi_7_links", 3))
		})
	}
}

func TestArticlePage(t *testing.T) {
	c := newTestCollector(t, WithArticlePageBase("https://pmc.test/articles/"))
	assert.Equal(t, "https://pmc.test/articles/PMC7654321/", c.articlePage("ncbi_7654321"))
	assert.Empty(t, c.articlePage("ncbi_abc"))
	assert.Empty(t, c.articlePage("ncbi_"))
}

func TestDownloadAllDocuments(t *testing.T) {
	var mu sync.Mutex
	var referers []string
	visits := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/articles/PMC7/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		visits++
		mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		fmt.Fprint(w, "<html><title>Article</title></html>")
	})
	mux.HandleFunc("/files/supp1.pdf", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		referers = append(referers, r.Header.Get("Referer"))
		mu.Unlock()
		if _, err := r.Cookie("session"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 content")
	})
	mux.HandleFunc("/files/missing.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/files/blocked.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><head><title> Access Denied </title></head><body>nope</body></html>")
	})
	mux.HandleFunc("/files/big.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>"+strings.Repeat("x", 6000)+"</html>")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := newTestCollector(t, WithArticlePageBase(ts.URL+"/articles/"))
	dir := filepath.Join(t.TempDir(), "2026-03-14")
	writeLinkFile(t, dir, "ncbi_7",
		ts.URL+"/files/supp1.pdf",
		ts.URL+"/files/missing.pdf",
		ts.URL+"/files/blocked.pdf",
		ts.URL+"/files/big.html",
	)

	summary, err := c.DownloadAllDocuments(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, visits, "article page visited once per link file")
	assert.Equal(t, []string{ts.URL + "/articles/PMC7/"}, referers)

	docs := filepath.Join(dir, types.DocumentsDirName)
	data, err := os.ReadFile(filepath.Join(docs, "supp1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", string(data))

	big, err := os.ReadFile(filepath.Join(docs, "big.html"))
	require.NoError(t, err)
	assert.Greater(t, len(big), 6000)

	assert.NoFileExists(t, filepath.Join(docs, "missing.pdf"))
	assert.NoFileExists(t, filepath.Join(docs, "blocked.pdf"))
	assert.FileExists(t, filepath.Join(docs, "error_blocked.pdf.html"))

	byURL := map[string]types.DownloadResult{}
	for _, r := range summary.Results {
		byURL[r.URL] = r
	}
	assert.Contains(t, byURL[ts.URL+"/files/missing.pdf"].Reason, "404")
	blocked := byURL[ts.URL+"/files/blocked.pdf"]
	assert.Equal(t, types.DownloadFailure, blocked.Status)
	assert.Contains(t, blocked.Reason, "Access Denied")
}

func TestDownloadAllDocuments_SkipsExisting(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		fmt.Fprint(w, "fresh")
	}))
	defer ts.Close()

	c := newTestCollector(t, WithArticlePageBase(""))
	dir := t.TempDir()
	writeLinkFile(t, dir, "ncbi_7", ts.URL+"/files/old.pdf")
	docs := filepath.Join(dir, types.DocumentsDirName)
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "old.pdf"), []byte("stale"), 0o644))

	summary, err := c.DownloadAllDocuments(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Succeeded())
	assert.Zero(t, hits)

	data, err := os.ReadFile(filepath.Join(docs, "old.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "stale", string(data))
}

func TestDownloadAllDocuments_RefererVisitFailureIgnored(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer ts.Close()

	// Nothing listens on the article base; the visit fails, the download does not.
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	c := newTestCollector(t, WithArticlePageBase(deadURL+"/"))
	dir := t.TempDir()
	writeLinkFile(t, dir, "ncbi_9", ts.URL+"/x/file.txt")

	summary, err := c.DownloadAllDocuments(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Success)
}

func TestDownloadAllDocuments_NetworkFailureContinues(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer ok.Close()
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	c := newTestCollector(t, WithArticlePageBase(""))
	dir := t.TempDir()
	writeLinkFile(t, dir, "ncbi_1", deadURL+"/a.pdf", ok.URL+"/b.pdf")

	summary, err := c.DownloadAllDocuments(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Failed)
}

func TestDownloadAllDocuments_SynthesizedNames(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer ts.Close()

	c := newTestCollector(t, WithArticlePageBase(""))
	dir := t.TempDir()
	writeLinkFile(t, dir, "ncbi_4", ts.URL+"/", ts.URL+"/q/ab")

	summary, err := c.DownloadAllDocuments(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Success)
	docs := filepath.Join(dir, types.DocumentsDirName)
	assert.FileExists(t, filepath.Join(docs, "document_ncbi_4_links_1.bin"))
	assert.FileExists(t, filepath.Join(docs, "document_ncbi_4_links_2.bin"))
}

func TestDownloadAllDocuments_NothingToDo(t *testing.T) {
	c := newTestCollector(t)

	summary, err := c.DownloadAllDocuments(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Zero(t, summary.Total)

	empty := t.TempDir()
	summary, err = c.DownloadAllDocuments(context.Background(), empty)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.NoDirExists(t, filepath.Join(empty, types.DocumentsDirName))
}

func TestDownloadAllDocuments_Throttled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "payload")
	}))
	defer ts.Close()

	cfg := types.CollectorConfig{OutputDir: t.TempDir(), DownloadDelay: 40 * time.Millisecond}
	c := New(cfg, zerolog.Nop(), WithArticlePageBase(""))
	dir := t.TempDir()
	writeLinkFile(t, dir, "ncbi_1", ts.URL+"/a.pdf", ts.URL+"/b.pdf", ts.URL+"/c.pdf")

	start := time.Now()
	summary, err := c.DownloadAllDocuments(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Success)
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

// streamingServer sends chunks of 1KiB every interval, then either finishes
// or stalls until the client goes away.
func streamingServer(t *testing.T, chunks int, interval time.Duration, stall bool) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		flusher := w.(http.Flusher)
		chunk := strings.Repeat("x", 1024)
		for i := 0; i < chunks; i++ {
			fmt.Fprint(w, chunk)
			flusher.Flush()
			time.Sleep(interval)
		}
		if stall {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestDownloadAllDocuments_SlowStreamCompletes(t *testing.T) {
	ts := streamingServer(t, 9, 100*time.Millisecond, false)

	cfg := types.CollectorConfig{OutputDir: t.TempDir(), DownloadDelay: -1}
	cfg.Timeout = 300 * time.Millisecond
	c := New(cfg, zerolog.Nop(), WithArticlePageBase(""))
	dir := t.TempDir()
	writeLinkFile(t, dir, "ncbi_1", ts.URL+"/dataset.tar")

	summary, err := c.DownloadAllDocuments(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Success, "results: %+v", summary.Results)
	assert.EqualValues(t, 9*1024, summary.Results[0].Bytes)

	info, err := os.Stat(filepath.Join(dir, types.DocumentsDirName, "dataset.tar"))
	require.NoError(t, err)
	assert.EqualValues(t, 9*1024, info.Size())
}

func TestDownloadAllDocuments_StalledStreamFails(t *testing.T) {
	ts := streamingServer(t, 2, 10*time.Millisecond, true)

	cfg := types.CollectorConfig{OutputDir: t.TempDir(), DownloadDelay: -1}
	cfg.Timeout = 200 * time.Millisecond
	c := New(cfg, zerolog.Nop(), WithArticlePageBase(""))
	dir := t.TempDir()
	writeLinkFile(t, dir, "ncbi_1", ts.URL+"/dataset.tar")

	summary, err := c.DownloadAllDocuments(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Results[0].Reason, "idle timeout")
	assert.NoFileExists(t, filepath.Join(dir, types.DocumentsDirName, "dataset.tar"))
}

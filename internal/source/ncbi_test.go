// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

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

	"github.com/pdiddy/suppfetch/internal/extract"
	"github.com/pdiddy/suppfetch/pkg/types"
)

// articleXML renders one JATS article element with supplementary hrefs.
func articleXML(id string, hrefs ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<article xmlns:xlink="http://www.w3.org/1999/xlink"><front><article-meta>`)
	fmt.Fprintf(&b, `<article-id pub-id-type="pmcid">PMC%s</article-id></article-meta></front><back>`, id)
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<supplementary-material xlink:href=%q/>`, h)
	}
	b.WriteString(`</back></article>`)
	return b.String()
}

func articleSet(articles ...string) string {
	return `<?xml version="1.0"?><pmc-articleset>` + strings.Join(articles, "") + `</pmc-articleset>`
}

// fakeEutils serves esearch/esummary/efetch from in-memory fixtures and
// records every efetch id list it receives.
type fakeEutils struct {
	mu          sync.Mutex
	searchIDs   []string
	titles      map[string]string
	fetchFn     func(w http.ResponseWriter, r *http.Request, ids []string)
	fetched     [][]string
	searchTerms []string
	summaryHits int
}

func (f *fakeEutils) handler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "pmc", q.Get("db"))
		assert.Equal(t, "suppfetch", q.Get("tool"))

		switch r.URL.Path {
		case "/esearch.fcgi":
			f.mu.Lock()
			f.searchTerms = append(f.searchTerms, q.Get("term"))
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"esearchresult":{"count":"%d","idlist":[%s]}}`,
				len(f.searchIDs), quoteJoin(f.searchIDs))
		case "/esummary.fcgi":
			f.mu.Lock()
			f.summaryHits++
			f.mu.Unlock()
			ids := strings.Split(q.Get("id"), ",")
			var parts []string
			parts = append(parts, fmt.Sprintf(`"uids":[%s]`, quoteJoin(ids)))
			for _, id := range ids {
				if title, ok := f.titles[id]; ok {
					parts = append(parts, fmt.Sprintf(`%q:{"uid":%q,"title":%q}`, id, id, title))
				}
			}
			fmt.Fprintf(w, `{"result":{%s}}`, strings.Join(parts, ","))
		case "/efetch.fcgi":
			assert.Equal(t, "xml", q.Get("retmode"))
			ids := strings.Split(q.Get("id"), ",")
			f.mu.Lock()
			f.fetched = append(f.fetched, ids)
			f.mu.Unlock()
			f.fetchFn(w, r, ids)
		default:
			http.NotFound(w, r)
		}
	})
}

func quoteJoin(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return strings.Join(quoted, ",")
}

func testConfig(baseURL string) types.SourceConfig {
	return types.SourceConfig{
		HTTPConfig:   types.HTTPConfig{Timeout: 2 * time.Second},
		BaseURL:      baseURL,
		FetchTimeout: 2 * time.Second,
		BatchSize:    10,
		BatchDelay:   -1,
	}
}

func newTestNCBI(t *testing.T, f *fakeEutils) (*NCBI, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)
	return NewNCBI(testConfig(ts.URL), zerolog.Nop()), ts
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%d", 1000+i)
	}
	return out
}

// --- Partition ---

func TestPartition(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		wantN int
	}{
		{"empty", 0, 10, 0},
		{"one short batch", 3, 10, 1},
		{"exact multiple", 20, 10, 2},
		{"remainder", 25, 10, 3},
		{"size one", 4, 1, 4},
		{"default size", 21, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ids(tt.n)
			got := Partition(in, tt.size)
			require.Len(t, got, tt.wantN)

			var flat []string
			for _, b := range got {
				size := tt.size
				if size <= 0 {
					size = DefaultBatchSize
				}
				assert.LessOrEqual(t, len(b), size)
				assert.NotEmpty(t, b)
				flat = append(flat, b...)
			}
			if tt.n == 0 {
				assert.Empty(t, flat)
			} else {
				assert.Equal(t, in, flat)
			}
		})
	}
}

func TestPartition_BatchesDoNotAlias(t *testing.T) {
	in := ids(4)
	got := Partition(in, 2)
	got[0] = append(got[0], "x")
	assert.Equal(t, "1002", in[2])
}

// --- Search ---

func TestSearch_ReturnsIDs(t *testing.T) {
	f := &fakeEutils{searchIDs: []string{"1", "2", "3"}}
	h, _ := newTestNCBI(t, f)

	got := h.Search(context.Background(), "brain MRI", 5)
	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.Equal(t, []string{"brain MRI"}, f.searchTerms)
}

func TestSearch_TrimsToMaxResults(t *testing.T) {
	f := &fakeEutils{searchIDs: ids(8)}
	h, _ := newTestNCBI(t, f)

	got := h.Search(context.Background(), "q", 5)
	assert.Len(t, got, 5)
}

func TestSearch_OpenAccessFilter(t *testing.T) {
	f := &fakeEutils{searchIDs: []string{"1"}}
	ts := httptest.NewServer(f.handler(t))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.OpenAccessOnly = true
	NewNCBI(cfg, zerolog.Nop()).Search(context.Background(), "brain MRI", 1)
	assert.Equal(t, []string{"brain MRI AND open access[filter]"}, f.searchTerms)
}

func TestSearch_FailuresReturnEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"invalid json", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"esearchresult":`)
		}},
		{"upstream error", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"error":"API rate limit exceeded"}`)
		}},
		{"zero hits", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			got := NewNCBI(testConfig(ts.URL), zerolog.Nop()).Search(context.Background(), "q", 5)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestSearch_NetworkFailureReturnsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	got := NewNCBI(testConfig(url), zerolog.Nop()).Search(context.Background(), "q", 5)
	assert.Empty(t, got)
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := &fakeEutils{searchIDs: []string{"1"}}
	h, _ := newTestNCBI(t, f)

	assert.Empty(t, h.Search(context.Background(), "   ", 5))
	assert.Empty(t, f.searchTerms)
}

// --- FetchMetadata ---

func TestFetchMetadata_OneRecordPerID(t *testing.T) {
	f := &fakeEutils{titles: map[string]string{"1": "First", "3": "  "}}
	h, _ := newTestNCBI(t, f)

	in := []string{"1", "2", "3"}
	got := h.FetchMetadata(context.Background(), in)
	require.Len(t, got, len(in))
	assert.Equal(t, "First", got["1"].Title)
	assert.Equal(t, types.UntitledArticle, got["2"].Title)
	assert.Equal(t, types.UntitledArticle, got["3"].Title)
	for _, id := range in {
		assert.Equal(t, id, got[id].ID)
		assert.Empty(t, got[id].Links)
	}
}

func TestFetchMetadata_EmptyInputSkipsRequest(t *testing.T) {
	f := &fakeEutils{}
	h, _ := newTestNCBI(t, f)

	got := h.FetchMetadata(context.Background(), nil)
	assert.Empty(t, got)
	assert.Zero(t, f.summaryHits)
}

func TestFetchMetadata_FailureReturnsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	got := NewNCBI(testConfig(ts.URL), zerolog.Nop()).FetchMetadata(context.Background(), []string{"1"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// --- FetchSupplementaryMaterials ---

func TestFetchSupplementary_BatchesAndExtracts(t *testing.T) {
	f := &fakeEutils{}
	f.fetchFn = func(w http.ResponseWriter, _ *http.Request, batch []string) {
		var articles []string
		for _, id := range batch {
			if id == "1003" {
				articles = append(articles, articleXML(id))
				continue
			}
			articles = append(articles, articleXML(id, "s_"+id+".pdf"))
		}
		fmt.Fprint(w, articleSet(articles...))
	}
	h, _ := newTestNCBI(t, f)

	in := ids(25)
	got := h.FetchSupplementaryMaterials(context.Background(), in)

	require.Len(t, f.fetched, 3)
	assert.Equal(t, in[0:10], f.fetched[0])
	assert.Equal(t, in[10:20], f.fetched[1])
	assert.Equal(t, in[20:25], f.fetched[2])

	assert.Len(t, got, 24, "article without links is omitted")
	assert.NotContains(t, got, "1003")
	assert.Equal(t, []string{extract.PMCAssetBase + "PMC1000/bin/s_1000.pdf"}, got["1000"])
	for id := range got {
		assert.Contains(t, in, id)
	}
}

func TestFetchSupplementary_FailedBatchesAreIsolated(t *testing.T) {
	f := &fakeEutils{}
	f.fetchFn = func(w http.ResponseWriter, r *http.Request, batch []string) {
		switch batch[0] {
		case "1000":
			// Outlives the fetch timeout.
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			return
		case "1002":
			fmt.Fprint(w, `<pmc-articleset><article>`)
			return
		case "1004":
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var articles []string
		for _, id := range batch {
			articles = append(articles, articleXML(id, "https://cdn.example/"+id+".zip"))
		}
		fmt.Fprint(w, articleSet(articles...))
	}
	ts := httptest.NewServer(f.handler(t))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.BatchSize = 2
	cfg.FetchTimeout = 100 * time.Millisecond
	h := NewNCBI(cfg, zerolog.Nop())

	got := h.FetchSupplementaryMaterials(context.Background(), ids(8))

	assert.Len(t, f.fetched, 4, "every batch is attempted")
	assert.Equal(t, map[string][]string{
		"1006": {"https://cdn.example/1006.zip"},
		"1007": {"https://cdn.example/1007.zip"},
	}, got)
}

func TestFetchSupplementary_IgnoresUnrequestedArticles(t *testing.T) {
	f := &fakeEutils{}
	f.fetchFn = func(w http.ResponseWriter, _ *http.Request, _ []string) {
		fmt.Fprint(w, articleSet(articleXML("1", "a.pdf"), articleXML("999", "b.pdf")))
	}
	h, _ := newTestNCBI(t, f)

	got := h.FetchSupplementaryMaterials(context.Background(), []string{"1"})
	assert.Len(t, got, 1)
	assert.Contains(t, got, "1")
}

func TestFetchSupplementary_EmptyInput(t *testing.T) {
	f := &fakeEutils{}
	h, _ := newTestNCBI(t, f)

	got := h.FetchSupplementaryMaterials(context.Background(), nil)
	assert.Empty(t, got)
	assert.Empty(t, f.fetched)
}

func TestFetchSupplementary_DebugDump(t *testing.T) {
	f := &fakeEutils{}
	f.fetchFn = func(w http.ResponseWriter, _ *http.Request, batch []string) {
		fmt.Fprint(w, articleSet(articleXML(batch[0], "a.pdf")))
	}
	ts := httptest.NewServer(f.handler(t))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.BatchSize = 1
	cfg.DebugDir = filepath.Join(t.TempDir(), "xml")
	NewNCBI(cfg, zerolog.Nop()).FetchSupplementaryMaterials(context.Background(), []string{"1", "2"})

	for _, name := range []string{"batch_001.xml", "batch_002.xml"} {
		data, err := os.ReadFile(filepath.Join(cfg.DebugDir, name))
		require.NoError(t, err)
		assert.Contains(t, string(data), "pmc-articleset")
	}
}

func TestFetchSupplementary_CourtesyDelayBetweenBatches(t *testing.T) {
	f := &fakeEutils{}
	f.fetchFn = func(w http.ResponseWriter, _ *http.Request, batch []string) {
		fmt.Fprint(w, articleSet(articleXML(batch[0], "a.pdf")))
	}
	ts := httptest.NewServer(f.handler(t))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.BatchSize = 1
	cfg.BatchDelay = 40 * time.Millisecond
	h := NewNCBI(cfg, zerolog.Nop())

	start := time.Now()
	h.FetchSupplementaryMaterials(context.Background(), []string{"1", "2", "3"})
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

// --- registry ---

func TestNew(t *testing.T) {
	h, err := New(types.SourceConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ncbi", h.Name())

	_, err = New(types.SourceConfig{Name: "google-scholar"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = New(types.SourceConfig{Name: "nope"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownSource)

	assert.Equal(t, []string{"google-scholar", "ncbi"}, Names())
}

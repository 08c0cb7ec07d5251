// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/suppfetch/internal/extract"
	"github.com/pdiddy/suppfetch/internal/httputil"
	"github.com/pdiddy/suppfetch/pkg/types"
)

const (
	// DefaultNCBIBaseURL is the root of the NCBI E-utilities API.
	DefaultNCBIBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	defaultUserAgent    = "suppfetch/0.1"
	defaultTimeout      = 10 * time.Second
	defaultFetchTimeout = 30 * time.Second
	defaultBatchDelay   = 1 * time.Second
	defaultMaxResults   = 10

	pmcDB          = "pmc"
	openAccessTerm = " AND open access[filter]"
	toolName       = "suppfetch"
)

// NCBI searches PubMed Central through E-utilities: esearch for IDs,
// esummary for titles, efetch for full-text JATS XML.
type NCBI struct {
	cfg       types.SourceConfig
	client    *http.Client
	throttle  *httputil.Throttle
	extractor *extract.Extractor
	logger    zerolog.Logger
}

var _ Handler = (*NCBI)(nil)

// NewNCBI returns a PMC handler. Zero-valued config fields take defaults.
// All upstream calls share one throttle spaced by cfg.BatchDelay; the first
// call is not delayed.
func NewNCBI(cfg types.SourceConfig, logger zerolog.Logger) *NCBI {
	cfg = applyDefaults(cfg)
	return &NCBI{
		cfg:       cfg,
		client:    &http.Client{},
		throttle:  httputil.NewThrottle(cfg.BatchDelay),
		extractor: extract.NewPMC(""),
		logger:    logger.With().Str("source", "ncbi").Logger(),
	}
}

func applyDefaults(cfg types.SourceConfig) types.SourceConfig {
	if cfg.Name == "" {
		cfg.Name = "ncbi"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNCBIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	} else if cfg.BatchDelay == 0 {
		cfg.BatchDelay = defaultBatchDelay
	}
	return cfg
}

// Name returns the source identifier.
func (n *NCBI) Name() string { return "ncbi" }

// esearchResponse is the JSON shape of esearch.fcgi?retmode=json.
type esearchResponse struct {
	Error  string `json:"error"`
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
}

// Search issues one esearch request. maxResults <= 0 uses the configured
// default.
func (n *NCBI) Search(ctx context.Context, query string, maxResults int) []types.ArticleID {
	ids := []types.ArticleID{}
	query = strings.TrimSpace(query)
	if query == "" {
		n.logger.Warn().Msg("empty search query")
		return ids
	}
	if maxResults <= 0 {
		maxResults = n.cfg.MaxResults
	}

	term := query
	if n.cfg.OpenAccessOnly {
		term += openAccessTerm
	}
	params := url.Values{}
	params.Set("db", pmcDB)
	params.Set("term", term)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(maxResults))

	body, err := n.get(ctx, "esearch.fcgi", params, n.cfg.Timeout)
	if err != nil {
		n.logger.Error().Err(err).Str("query", query).Msg("search request failed")
		return ids
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		n.logger.Error().Err(err).Str("query", query).Msg("search response is not valid JSON")
		return ids
	}
	if msg := firstNonEmpty(resp.Error, resp.Result.Error); msg != "" {
		n.logger.Error().Str("query", query).Str("upstream_error", msg).Msg("search rejected")
		return ids
	}

	ids = append(ids, resp.Result.IDList...)
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	if len(ids) == 0 {
		n.logger.Info().Str("query", query).Msg("no articles found")
		return ids
	}
	n.logger.Info().Str("query", query).Int("found", len(ids)).Str("total", resp.Result.Count).Msg("search complete")
	return ids
}

// esummaryDoc is the part of an esummary record this client reads.
type esummaryDoc struct {
	Title string `json:"title"`
}

// FetchMetadata issues one esummary request for all ids.
func (n *NCBI) FetchMetadata(ctx context.Context, ids []types.ArticleID) map[types.ArticleID]*types.ArticleRecord {
	records := make(map[types.ArticleID]*types.ArticleRecord, len(ids))
	if len(ids) == 0 {
		return records
	}

	params := url.Values{}
	params.Set("db", pmcDB)
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "json")

	body, err := n.get(ctx, "esummary.fcgi", params, n.cfg.Timeout)
	if err != nil {
		n.logger.Error().Err(err).Int("ids", len(ids)).Msg("metadata request failed")
		return map[types.ArticleID]*types.ArticleRecord{}
	}

	var resp struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		n.logger.Error().Err(err).Msg("metadata response is not valid JSON")
		return map[types.ArticleID]*types.ArticleRecord{}
	}

	for _, id := range ids {
		rec := &types.ArticleRecord{ID: id, Title: types.UntitledArticle, Links: []string{}}
		if raw, ok := resp.Result[id]; ok {
			var doc esummaryDoc
			if err := json.Unmarshal(raw, &doc); err == nil && strings.TrimSpace(doc.Title) != "" {
				rec.Title = strings.TrimSpace(doc.Title)
			}
		}
		records[id] = rec
	}
	return records
}

// FetchSupplementaryMaterials fetches full text in batches of cfg.BatchSize
// and extracts supplementary links. A batch that fails is logged and skipped.
func (n *NCBI) FetchSupplementaryMaterials(ctx context.Context, ids []types.ArticleID) map[types.ArticleID][]string {
	result := make(map[types.ArticleID][]string)
	batches := Partition(ids, n.cfg.BatchSize)

	failed := 0
	for i, batch := range batches {
		log := n.logger.With().Int("batch", i+1).Int("batches", len(batches)).Logger()

		articles, err := n.fetchBatch(ctx, i+1, batch)
		if err != nil {
			failed++
			log.Error().Err(err).Strs("ids", batch).Msg("batch failed, skipping")
			continue
		}

		requested := make(map[string]bool, len(batch))
		for _, id := range batch {
			requested[id] = true
		}
		found := 0
		for _, a := range articles {
			if !requested[a.ID] {
				log.Debug().Str("article_id", a.ID).Msg("ignoring article not in batch")
				continue
			}
			if len(a.Links) == 0 {
				continue
			}
			result[a.ID] = mergeLinks(result[a.ID], a.Links)
			found++
		}
		log.Info().Int("articles", len(articles)).Int("with_links", found).Msg("batch processed")
	}

	if failed > 0 {
		n.logger.Warn().Int("failed_batches", failed).Int("batches", len(batches)).Msg("some batches contributed no links")
	}
	return result
}

func (n *NCBI) fetchBatch(ctx context.Context, index int, batch []types.ArticleID) ([]extract.ArticleLinks, error) {
	params := url.Values{}
	params.Set("db", pmcDB)
	params.Set("id", strings.Join(batch, ","))
	params.Set("retmode", "xml")

	body, err := n.get(ctx, "efetch.fcgi", params, n.cfg.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetching batch %d: %w", index, err)
	}
	n.dumpBatch(index, body)

	articles, err := n.extractor.Extract(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", index, err)
	}
	return articles, nil
}

// dumpBatch writes raw batch XML to cfg.DebugDir when configured.
func (n *NCBI) dumpBatch(index int, body []byte) {
	if n.cfg.DebugDir == "" {
		return
	}
	if err := os.MkdirAll(n.cfg.DebugDir, 0o755); err != nil {
		n.logger.Warn().Err(err).Msg("cannot create debug directory")
		return
	}
	path := filepath.Join(n.cfg.DebugDir, fmt.Sprintf("batch_%03d.xml", index))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		n.logger.Warn().Err(err).Str("path", path).Msg("cannot write debug XML")
		return
	}
	n.logger.Debug().Str("path", path).Msg("wrote batch XML")
}

// get performs one throttled GET against an E-utilities endpoint and returns
// the body of a 2xx response.
func (n *NCBI) get(ctx context.Context, endpoint string, params url.Values, timeout time.Duration) ([]byte, error) {
	params.Set("tool", toolName)
	if n.cfg.Email != "" {
		params.Set("email", n.cfg.Email)
	}
	if n.cfg.APIKey != "" {
		params.Set("api_key", n.cfg.APIKey)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := n.cfg.BaseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", n.cfg.UserAgent)

	resp, err := httputil.Do(ctx, n.client, n.throttle, req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w %d", endpoint, ErrHTTPStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}
	return body, nil
}

// mergeLinks appends links not already present in dst.
func mergeLinks(dst, links []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, l := range dst {
		seen[l] = true
	}
	for _, l := range links {
		if !seen[l] {
			seen[l] = true
			dst = append(dst, l)
		}
	}
	return dst
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

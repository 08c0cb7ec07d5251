// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source talks to upstream literature repositories. A Handler runs
// the three query stages: keyword search for article IDs, a bulk metadata
// lookup, and batched full-text fetches that yield supplementary links.
//
// Handlers degrade rather than fail: every upstream call is wrapped at its
// own boundary, failures are logged, and the caller receives an empty or
// partial result.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pdiddy/suppfetch/pkg/types"
)

// DefaultBatchSize is the number of articles requested per full-text call.
const DefaultBatchSize = 10

// Handler runs the query pipeline against one upstream repository.
type Handler interface {
	// Name identifies the source; it also prefixes link file names.
	Name() string

	// Search returns up to maxResults article IDs for query. It returns an
	// empty slice, never an error, on zero hits or upstream failure.
	Search(ctx context.Context, query string, maxResults int) []types.ArticleID

	// FetchMetadata returns one record per input ID, with titles defaulted
	// when absent. It returns an empty map when the lookup fails.
	FetchMetadata(ctx context.Context, ids []types.ArticleID) map[types.ArticleID]*types.ArticleRecord

	// FetchSupplementaryMaterials returns the supplementary links of every
	// article that has any. Failed batches contribute nothing.
	FetchSupplementaryMaterials(ctx context.Context, ids []types.ArticleID) map[types.ArticleID][]string
}

var (
	// ErrUnknownSource is returned by New for an unregistered source name.
	ErrUnknownSource = errors.New("unknown source")

	// ErrNotImplemented is returned by New for a source that is listed but
	// has no handler yet.
	ErrNotImplemented = errors.New("source handler not implemented")

	// ErrHTTPStatus marks a non-2xx upstream response.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// constructors maps source names to handler factories. A nil factory marks
// a source that is offered but not implemented.
var constructors = map[string]func(types.SourceConfig, zerolog.Logger) Handler{
	"ncbi":           func(cfg types.SourceConfig, l zerolog.Logger) Handler { return NewNCBI(cfg, l) },
	"google-scholar": nil,
}

// New returns the handler registered under cfg.Name ("ncbi" when empty).
func New(cfg types.SourceConfig, logger zerolog.Logger) (Handler, error) {
	name := cfg.Name
	if name == "" {
		name = "ncbi"
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownSource, name, Names())
	}
	if ctor == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNotImplemented)
	}
	return ctor(cfg, logger), nil
}

// Names lists registered source names in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Partition splits ids into consecutive batches of at most size elements,
// preserving order. A size <= 0 uses DefaultBatchSize.
func Partition(ids []types.ArticleID, size int) [][]types.ArticleID {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]types.ArticleID, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end:end])
	}
	return batches
}

package papersources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/research-assistant-service/internal/domain"
)

// SourceResult holds the outcome of one search against one source.
// Exactly one of Result and Error is set.
type SourceResult struct {
	// Source identifies which paper source was queried.
	Source domain.SourceType

	// Result contains the search results if the search succeeded.
	Result *SearchResult

	// Error contains the error if the search failed.
	Error error
}

// Papers returns the papers of a successful result, or nil on failure.
func (r SourceResult) Papers() []domain.Paper {
	if r.Error != nil || r.Result == nil {
		return nil
	}
	return r.Result.Papers
}

// SearchRequest pairs a source with the parameters to search it with.
type SearchRequest struct {
	Source domain.SourceType
	Params SearchParams
}

// Registry manages paper sources and coordinates concurrent searches.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]PaperSource
}

// NewRegistry creates a new source registry with an empty source map.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]PaperSource),
	}
}

// Register adds a source to the registry.
// If a source with the same type already exists, it is replaced.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns a source by type, or nil if not found.
func (r *Registry) Get(sourceType domain.SourceType) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// AllSources returns a snapshot of all registered sources ordered by type.
func (r *Registry) AllSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, source := range r.sources {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].SourceType() < sources[j].SourceType()
	})
	return sources
}

// EnabledSources returns a snapshot of the enabled sources ordered by type.
func (r *Registry) EnabledSources() []PaperSource {
	all := r.AllSources()
	enabled := all[:0]
	for _, source := range all {
		if source.IsEnabled() {
			enabled = append(enabled, source)
		}
	}
	return enabled
}

// Search runs a single request. Unknown or disabled sources produce a
// SourceResult carrying domain.ErrSourceDisabled.
func (r *Registry) Search(ctx context.Context, req SearchRequest) SourceResult {
	source := r.Get(req.Source)
	if source == nil || !source.IsEnabled() {
		return SourceResult{
			Source: req.Source,
			Error:  fmt.Errorf("%s: %w", req.Source, domain.ErrSourceDisabled),
		}
	}

	result, err := source.Search(ctx, req.Params)
	if err != nil {
		return SourceResult{Source: req.Source, Error: err}
	}
	return SourceResult{Source: req.Source, Result: result}
}

// SearchEach runs every request concurrently and returns one SourceResult
// per request, in request order regardless of completion order.
// Failures are reported in the results, never as a returned error; the
// caller decides how to merge them.
func (r *Registry) SearchEach(ctx context.Context, requests []SearchRequest) []SourceResult {
	results := make([]SourceResult, len(requests))
	if len(requests) == 0 {
		return results
	}

	var g errgroup.Group
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			results[i] = r.Search(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

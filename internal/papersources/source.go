// Package papersources provides interfaces and types for bibliographic source clients.
//
// Each bibliographic service (CORE, Crossref) implements the PaperSource
// interface and normalizes its own raw payload into domain.Paper. The Registry
// resolves sources by type and runs several searches concurrently while
// keeping the caller's merge order.
//
// Example usage:
//
//	source := core.New(cfg, store)
//	params := papersources.SearchParams{
//		Query:      "quantum error correction",
//		MaxResults: 15,
//	}
//	result, err := source.Search(ctx, params)
package papersources

import (
	"context"
	"time"

	"github.com/helixir/research-assistant-service/internal/domain"
)

// SearchParams defines the parameters for searching a bibliographic source.
// All fields except Query are optional.
type SearchParams struct {
	// Query is the search query string (required).
	Query string

	// MaxResults limits the number of records requested from the source.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// Sort asks the source to order results, e.g. "relevance".
	// Sources that cannot sort ignore it.
	Sort string

	// RequireAbstract restricts results to records the source reports as
	// having an abstract.
	RequireAbstract bool

	// RequireFullText restricts results to records the source reports as
	// having full text available.
	RequireFullText bool

	// Secondary marks a padding search driven by a supplementary query.
	// Sources tag the resulting papers so their provenance stays visible.
	Secondary bool
}

// SearchResult contains the results from a paper source search operation.
type SearchResult struct {
	// Papers contains the normalized papers returned by the search.
	Papers []domain.Paper

	// TotalResults is the total number of matches reported by the source.
	// It may be an estimate.
	TotalResults int

	// Source identifies which paper source provided these results.
	Source domain.SourceType

	// Cached is true when the raw records were served from the query cache.
	Cached bool

	// SearchDuration is the time taken to execute the search.
	SearchDuration time.Duration
}

// PaperSource defines the interface that all bibliographic source clients implement.
type PaperSource interface {
	// Search queries the source for papers matching the given parameters.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting as needed
	//   - Transform source-specific records to domain.Paper
	//   - Wrap errors with source context
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this source.
	SourceType() domain.SourceType

	// Name returns a human-readable name used in logs and metrics.
	Name() string

	// IsEnabled returns whether the source is configured for use.
	IsEnabled() bool
}

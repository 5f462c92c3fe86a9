// Package aggregator turns a list of search queries into a bounded, ranked,
// deduplicated set of papers drawn from CORE and Crossref.
package aggregator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-assistant-service/internal/domain"
	"github.com/helixir/research-assistant-service/internal/observability"
	"github.com/helixir/research-assistant-service/internal/papersources"
)

// Searcher runs searches against registered paper sources.
// papersources.Registry satisfies it.
type Searcher interface {
	SearchEach(ctx context.Context, reqs []papersources.SearchRequest) []papersources.SourceResult
}

// Config tunes the pipeline. Zero values take the defaults below.
type Config struct {
	// PrimaryLimit is the number of CORE records requested for the first query.
	PrimaryLimit int

	// CrossrefRows is the number of Crossref records requested for the first query.
	CrossrefRows int

	// SecondaryLimit is the number of CORE records requested for the second query.
	SecondaryLimit int

	// SecondaryThreshold is the accumulated paper count below which the
	// second query is used to pad the results.
	SecondaryThreshold int

	// MaxResults bounds the returned result set.
	MaxResults int
}

const (
	DefaultPrimaryLimit       = 15
	DefaultCrossrefRows       = 10
	DefaultSecondaryLimit     = 10
	DefaultSecondaryThreshold = 10
	DefaultMaxResults         = 15

	crossrefSort = "relevance"
)

func (c *Config) applyDefaults() {
	if c.PrimaryLimit <= 0 {
		c.PrimaryLimit = DefaultPrimaryLimit
	}
	if c.CrossrefRows <= 0 {
		c.CrossrefRows = DefaultCrossrefRows
	}
	if c.SecondaryLimit <= 0 {
		c.SecondaryLimit = DefaultSecondaryLimit
	}
	if c.SecondaryThreshold <= 0 {
		c.SecondaryThreshold = DefaultSecondaryThreshold
	}
	if c.MaxResults <= 0 || c.MaxResults > DefaultMaxResults {
		c.MaxResults = DefaultMaxResults
	}
}

// Pipeline aggregates papers across sources. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	searcher Searcher
	config   Config
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// New creates a Pipeline. metrics may be nil.
func New(searcher Searcher, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{
		searcher: searcher,
		config:   cfg,
		logger:   logger.With().Str("component", "aggregator").Logger(),
		metrics:  metrics,
	}
}

// Aggregate searches CORE and Crossref with queries[0], pads with a CORE
// search for queries[1] when too few papers came back, then filters,
// deduplicates, ranks and truncates the merged list.
//
// Source failures are logged and contribute nothing; the only error is
// domain.ErrInvalidInput for an empty query list. The returned slice is
// never nil.
func (p *Pipeline) Aggregate(ctx context.Context, queries []string) ([]domain.Paper, error) {
	if len(queries) == 0 {
		p.metrics.RecordAggregationRejected()
		return nil, domain.NewValidationError("queries", "no search queries provided")
	}

	start := time.Now()
	logger := observability.LoggerFromContext(ctx, p.logger)
	p.metrics.RecordAggregationStarted()

	primary := queries[0]
	results := p.searchAll(ctx, logger, []papersources.SearchRequest{
		{
			Source: domain.SourceTypeCORE,
			Params: papersources.SearchParams{
				Query:      primary,
				MaxResults: p.config.PrimaryLimit,
			},
		},
		{
			Source: domain.SourceTypeCrossref,
			Params: papersources.SearchParams{
				Query:           primary,
				MaxResults:      p.config.CrossrefRows,
				Sort:            crossrefSort,
				RequireAbstract: true,
				RequireFullText: true,
			},
		},
	})

	var papers []domain.Paper
	for _, sr := range results {
		papers = append(papers, sr.Papers()...)
	}

	if len(papers) < p.config.SecondaryThreshold && len(queries) > 1 {
		p.metrics.RecordSecondarySearch()
		secondary := p.searchAll(ctx, logger, []papersources.SearchRequest{{
			Source: domain.SourceTypeCORE,
			Params: papersources.SearchParams{
				Query:      queries[1],
				MaxResults: p.config.SecondaryLimit,
				Secondary:  true,
			},
		}})
		papers = append(papers, ExcludeKnownTitles(papers, secondary[0].Papers())...)
	}

	merged := len(papers)
	papers = FilterCitable(papers)
	filtered := merged - len(papers)

	beforeDedup := len(papers)
	papers = Deduplicate(papers)
	duplicates := beforeDedup - len(papers)

	Rank(papers)

	truncated := 0
	if len(papers) > p.config.MaxResults {
		truncated = len(papers) - p.config.MaxResults
		papers = papers[:p.config.MaxResults]
	}
	if papers == nil {
		papers = []domain.Paper{}
	}

	p.metrics.RecordPapersFiltered(filtered)
	p.metrics.RecordPaperDuplicates(duplicates)
	p.metrics.RecordPapersTruncated(truncated)
	p.metrics.RecordAggregationCompleted(len(papers), time.Since(start).Seconds())

	logger.Info().
		Str("query", primary).
		Int("merged", merged).
		Int("filtered", filtered).
		Int("duplicates", duplicates).
		Int("returned", len(papers)).
		Dur("duration", time.Since(start)).
		Msg("paper aggregation completed")

	return papers, nil
}

// searchAll runs reqs concurrently and records per-source outcomes.
// Results come back in request order.
func (p *Pipeline) searchAll(ctx context.Context, logger zerolog.Logger, reqs []papersources.SearchRequest) []papersources.SourceResult {
	for _, req := range reqs {
		p.metrics.RecordSearchStarted(string(req.Source))
	}

	start := time.Now()
	results := p.searcher.SearchEach(ctx, reqs)

	for i, sr := range results {
		source := string(sr.Source)
		srcLogger := observability.WithSearchContext(logger, reqs[i].Params.Query, source)
		if sr.Error != nil {
			srcLogger.Warn().Err(sr.Error).Msg("source search failed")
			p.metrics.RecordSearchFailed(source, time.Since(start).Seconds())
			continue
		}

		papers := sr.Papers()
		var took time.Duration
		cached := false
		if sr.Result != nil {
			took = sr.Result.SearchDuration
			cached = sr.Result.Cached
		}
		srcLogger.Debug().
			Int("papers", len(papers)).
			Bool("cached", cached).
			Dur("duration", took).
			Bool("secondary", reqs[i].Params.Secondary).
			Msg("source search completed")
		p.metrics.RecordSearchCompleted(source, len(papers), took.Seconds())
	}
	return results
}

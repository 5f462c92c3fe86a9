// Package core implements the CORE (core.ac.uk) search client.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/helixir/research-assistant-service/internal/cache"
	"github.com/helixir/research-assistant-service/internal/domain"
	"github.com/helixir/research-assistant-service/internal/papersources"
)

const (
	// DefaultBaseURL is the CORE v3 API base URL.
	DefaultBaseURL = "https://api.core.ac.uk/v3"

	// DefaultRateLimit is the default requests per second. CORE's free tier
	// is considerably stricter than Crossref's.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the limit used when SearchParams.MaxResults is zero.
	DefaultMaxResults = 15

	sourceName = "CORE"
)

// Config holds configuration for the CORE client.
type Config struct {
	// BaseURL is the CORE API base URL.
	// Defaults to https://api.core.ac.uk/v3
	BaseURL string

	// APIKey is sent as a bearer token. The client is disabled without one.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is forwarded to the HTTP client.
	MaxRetries int

	// MaxResults is the limit used when a search does not set one.
	MaxResults int

	// Observer receives request telemetry. Optional.
	Observer papersources.RequestObserver

	// CacheObserver is told about cache hits and misses. Optional.
	CacheObserver CacheObserver
}

// CacheObserver receives query cache telemetry.
type CacheObserver interface {
	RecordCacheHit(source string)
	RecordCacheMiss(source string)
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements papersources.PaperSource for CORE.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	store      cache.Store[[]Work]
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a CORE client. A nil store disables caching.
func New(cfg Config, store cache.Store[[]Work]) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:       string(domain.SourceTypeCORE),
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		MaxRetries:   cfg.MaxRetries,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Bearer ",
		Observer:     cfg.Observer,
	})

	return NewWithHTTPClient(cfg, httpClient, store)
}

// NewWithHTTPClient creates a CORE client with a custom HTTP client.
// The HTTP client is expected to carry the bearer credential.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, store cache.Store[[]Work]) *Client {
	cfg.applyDefaults()
	if store == nil {
		store = cache.Noop[[]Work]{}
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		store:      store,
	}
}

// SourceType returns domain.SourceTypeCORE.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCORE
}

// Name returns the human-readable source name.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled reports whether an API key is configured.
func (c *Client) IsEnabled() bool {
	return c.config.APIKey != ""
}

// Search queries CORE for works matching params.Query. Raw records are
// memoized by (query, limit); normalization runs on every call so the
// same cached records can back both primary and secondary searches.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	limit := params.MaxResults
	if limit == 0 {
		limit = c.config.MaxResults
	}
	key := cache.Key{Query: params.Query, Limit: limit}

	works, cached := c.store.Get(key)
	c.recordCacheLookup(cached)

	total := len(works)
	if !cached {
		resp, err := c.fetch(ctx, params.Query, limit)
		if err != nil {
			return nil, err
		}
		works = resp.Results
		total = resp.TotalHits
		c.store.Add(key, works)
	}

	papers := make([]domain.Paper, 0, len(works))
	for i := range works {
		papers = append(papers, workToPaper(&works[i], i, params.Secondary))
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   total,
		Source:         domain.SourceTypeCORE,
		Cached:         cached,
		SearchDuration: time.Since(startTime),
	}, nil
}

func (c *Client) fetch(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	searchURL, err := c.buildSearchURL(query, limit)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req, "search")
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "malformed response body", fmt.Errorf("decoding response: %w", err))
	}
	return &searchResp, nil
}

func (c *Client) buildSearchURL(query string, limit int) (string, error) {
	u, err := url.Parse(c.config.BaseURL + "/search/works")
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Client) recordCacheLookup(hit bool) {
	if c.config.CacheObserver == nil {
		return
	}
	if hit {
		c.config.CacheObserver.RecordCacheHit(string(domain.SourceTypeCORE))
	} else {
		c.config.CacheObserver.RecordCacheMiss(string(domain.SourceTypeCORE))
	}
}

// workToPaper normalizes a CORE record. Missing fields stay empty. A record
// without a CORE id is keyed by its DOI, or by its position in the response.
func workToPaper(w *Work, index int, secondary bool) domain.Paper {
	idPrefix, label := domain.IDPrefixCORE, domain.SourceLabelCORE
	if secondary {
		idPrefix, label = domain.IDPrefixCORESecondary, domain.SourceLabelCORESecondary
	}

	authors := make([]domain.Author, 0, len(w.Authors))
	for _, a := range w.Authors {
		authors = append(authors, domain.Author{Name: a.Name})
	}

	link := w.DownloadURL
	if link == "" {
		link = w.LinkIdentifier()
	}

	id := string(w.ID)
	switch {
	case id != "":
	case w.DOI != "":
		id = "doi-" + w.DOI
	default:
		id = "idx-" + strconv.Itoa(index)
	}

	p := domain.Paper{
		ID:       idPrefix + id,
		Title:    w.Title,
		Authors:  authors,
		Abstract: w.Abstract,
		Venue:    w.Publisher,
		DOI:      w.DOI,
		URL:      link,
		Source:   label,
	}
	if w.YearPublished != nil {
		p.Year = domain.IntPtr(*w.YearPublished)
	}
	return p
}

// Package crossref implements the Crossref REST API search client.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/research-assistant-service/internal/domain"
	"github.com/helixir/research-assistant-service/internal/papersources"
)

const (
	// DefaultBaseURL is the Crossref REST API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default requests per second for the polite pool.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the rows value used when SearchParams.MaxResults is zero.
	DefaultMaxResults = 10

	// UnknownTitle replaces a missing title.
	UnknownTitle = "Unknown Title"

	sourceName = "Crossref"
)

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the Crossref API base URL.
	// Defaults to https://api.crossref.org
	BaseURL string

	// Email is sent as the mailto parameter for the polite pool.
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is forwarded to the HTTP client.
	MaxRetries int

	// MaxResults is the rows value used when a search does not set one.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool

	// Observer receives request telemetry. Optional.
	Observer papersources.RequestObserver
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

// Client implements papersources.PaperSource for Crossref.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a Crossref client.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := papersources.DefaultUserAgent
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     string(domain.SourceTypeCrossref),
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  userAgent,
		Observer:   cfg.Observer,
	})

	return NewWithHTTPClient(cfg, httpClient)
}

// NewWithHTTPClient creates a Crossref client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// SourceType returns domain.SourceTypeCrossref.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCrossref
}

// Name returns the human-readable source name.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Search queries Crossref for works matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req, "works")
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

	papers := make([]domain.Paper, 0, len(searchResp.Message.Items))
	for i := range searchResp.Message.Items {
		papers = append(papers, itemToPaper(&searchResp.Message.Items[i]))
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   searchResp.Message.TotalResults,
		Source:         domain.SourceTypeCrossref,
		SearchDuration: time.Since(startTime),
	}, nil
}

func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	u, err := url.Parse(c.config.BaseURL + "/works")
	if err != nil {
		return "", err
	}

	rows := params.MaxResults
	if rows == 0 {
		rows = c.config.MaxResults
	}

	q := u.Query()
	q.Set("query", params.Query)
	q.Set("rows", strconv.Itoa(rows))
	if params.Sort != "" {
		q.Set("sort", params.Sort)
	}

	var filters []string
	if params.RequireAbstract {
		filters = append(filters, "has-abstract:true")
	}
	if params.RequireFullText {
		filters = append(filters, "has-full-text:true")
	}
	if len(filters) > 0 {
		q.Set("filter", strings.Join(filters, ","))
	}

	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// itemToPaper normalizes a Crossref record. The abstract is passed through
// as served, JATS markup included. Only an absent title gets UnknownTitle;
// an empty title list yields an empty title, which filtering later drops.
func itemToPaper(item *Item) domain.Paper {
	title := UnknownTitle
	if item.Title != nil {
		title = item.Title.First()
	}

	authors := make([]domain.Author, 0, len(item.Author))
	for _, a := range item.Author {
		authors = append(authors, domain.Author{
			Name: strings.TrimSpace(a.Given + " " + a.Family),
		})
	}

	p := domain.Paper{
		ID:       domain.IDPrefixCrossref + item.DOI,
		Title:    title,
		Authors:  authors,
		Abstract: item.Abstract,
		Venue:    item.ContainerTitle.First(),
		DOI:      item.DOI,
		URL:      item.URL,
		Source:   domain.SourceLabelCrossref,
	}
	if year, ok := item.Published.Year(); ok {
		p.Year = domain.IntPtr(year)
	}
	return p
}

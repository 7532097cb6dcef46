// Package registry looks up PubMed records through the E-utilities efetch
// endpoint and maps them into domain records.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-retrieval-service/internal/cache"
	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/observability"
	"github.com/helixir/pubmed-retrieval-service/internal/record"
	"github.com/helixir/pubmed-retrieval-service/internal/transport"
	"github.com/helixir/pubmed-retrieval-service/internal/xmltree"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 60 * time.Second

	maxResponseSize = 10 << 20
	articlePath     = "/PubmedArticleSet/PubmedArticle"
	entityName      = "pubmed record"
)

// Lookup results used as metric labels.
const (
	resultFound     = "found"
	resultNotFound  = "not_found"
	resultMapFailed = "map_failed"
	resultCacheHit  = "cache_hit"
)

// Config holds the configuration for the registry client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits. Optional.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// MaxRetries is the number of retries on 429 and 5xx responses. Zero,
	// the default, keeps a lookup to a single round-trip.
	MaxRetries int
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
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithCache consults c before the network and fills it after a successful
// lookup.
func WithCache(c cache.Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithMetrics records lookup results in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// WithMapper replaces the default record mapper.
func WithMapper(m *record.Mapper) Option {
	return func(cl *Client) { cl.mapper = m }
}

// WithHTTPClient replaces the transport client built from Config.
func WithHTTPClient(hc *transport.Client) Option {
	return func(cl *Client) { cl.http = hc }
}

// Client fetches records by PMID. It is safe for concurrent use.
type Client struct {
	config  Config
	http    *transport.Client
	mapper  *record.Mapper
	cache   cache.Cache
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// New creates a registry client.
func New(cfg Config, logger zerolog.Logger, opts ...Option) *Client {
	cfg.applyDefaults()

	c := &Client{
		config: cfg,
		cache:  cache.Nop{},
		logger: logger.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		limiter := transport.NewHostLimiter(transport.LimitConfig{
			RequestsPerSecond: cfg.RateLimit,
			Burst:             int(cfg.RateLimit),
		})
		c.http = transport.NewClient(transport.Config{
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Limiter:    limiter,
		})
	}
	if c.mapper == nil {
		c.mapper = record.NewMapper(nil)
	}
	return c
}

// FetchByID performs one registry round-trip for pmid and maps the first
// PubmedArticle of the response. Transport failures, non-200 responses and
// empty result sets are reported as *domain.NotFoundError; a record that
// cannot be mapped is reported as *domain.MappingError.
func (c *Client) FetchByID(ctx context.Context, pmid string) (*domain.Record, error) {
	if err := domain.ValidatePMID(pmid); err != nil {
		return nil, err
	}

	start := time.Now()
	key := "efetch:" + pmid

	if body, err := c.cache.Get(ctx, key); err == nil {
		rec, err := c.decode(pmid, body)
		if err == nil {
			c.observe(resultCacheHit, start)
			return rec, nil
		}
		c.logger.Warn().Err(err).Str("pmid", pmid).Msg("discarding unusable cached response")
	} else if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn().Err(err).Str("pmid", pmid).Msg("registry cache read failed")
	}

	body, err := c.efetch(ctx, pmid)
	if err != nil {
		c.observe(resultNotFound, start)
		c.logger.Warn().Err(err).Str("pmid", pmid).Msg("registry lookup failed")
		return nil, domain.NewNotFoundError(entityName, pmid, err)
	}

	rec, err := c.decode(pmid, body)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.observe(resultNotFound, start)
		} else {
			c.observe(resultMapFailed, start)
		}
		return nil, err
	}

	if err := c.cache.Set(ctx, key, body); err != nil {
		c.logger.Warn().Err(err).Str("pmid", pmid).Msg("registry cache write failed")
	}
	c.observe(resultFound, start)
	return rec, nil
}

// efetch returns the raw response body of a 200 response.
func (c *Client) efetch(ctx context.Context, pmid string) ([]byte, error) {
	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", pmid)
	q.Set("retmode", "xml")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	resp, err := c.http.Get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		var cause error
		if resp.StatusCode == http.StatusTooManyRequests {
			cause = domain.NewRateLimitError(entityName, transport.RetryAfter(resp))
		}
		return nil, domain.NewTransportError(transport.RedactURL(u), resp.StatusCode, cause)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, domain.NewTransportError(transport.RedactURL(u), 0, fmt.Errorf("read response: %w", err))
	}
	return body, nil
}

// decode parses an efetch response and maps its first article.
func (c *Client) decode(pmid string, body []byte) (*domain.Record, error) {
	doc, err := xmltree.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewMappingError(pmid, "document", err)
	}
	article := doc.First(articlePath)
	if article == nil {
		return nil, domain.NewNotFoundError(entityName, pmid, nil)
	}
	return c.mapper.Map(article)
}

func (c *Client) observe(result string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordRegistryLookup(result, time.Since(start))
	}
}

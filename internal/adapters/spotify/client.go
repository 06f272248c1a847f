// Package spotify implements the catalog port against the Spotify Web API.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/ports"
)

const (
	// DefaultBaseURL is the Web API root.
	DefaultBaseURL = "https://api.spotify.com/v1"
	// DefaultProbePlaylistID is a public editorial playlist used to check tokens.
	DefaultProbePlaylistID = "37i9dQZF1DXcBWIGoYBM5M"
	// MaxFeatureBatch is the API limit of ids per audio-features request.
	MaxFeatureBatch = 100
)

// Config holds the client settings.
type Config struct {
	BaseURL            string
	ProbePlaylistID    string
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RetryMaxBackoff    time.Duration
	RateLimit          float64
	RateBurst          int
	FeatureBatchSize   int
	FeatureConcurrency int
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		ProbePlaylistID:    DefaultProbePlaylistID,
		Timeout:            15 * time.Second,
		MaxRetries:         defaultMaxRetries,
		RetryBackoff:       defaultBackoffMs * time.Millisecond,
		RetryMaxBackoff:    30 * time.Second,
		RateLimit:          8,
		RateBurst:          4,
		FeatureBatchSize:   MaxFeatureBatch,
		FeatureConcurrency: 1,
	}
}

// Client is an HTTP client for the Spotify adapter.
type Client struct {
	http        *resty.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
	probeID     string
	batchSize   int
	concurrency int
	maxRetries  int
	baseBackoff time.Duration
}

// compile-time interface assertion
var _ ports.CatalogProvider = (*Client)(nil)

// NewClient constructs a client. Zero config fields take their defaults;
// a RateLimit of zero or less disables throttling.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ProbePlaylistID == "" {
		cfg.ProbePlaylistID = def.ProbePlaylistID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.RetryMaxBackoff <= 0 {
		cfg.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if cfg.FeatureBatchSize <= 0 || cfg.FeatureBatchSize > MaxFeatureBatch {
		cfg.FeatureBatchSize = MaxFeatureBatch
	}
	if cfg.FeatureConcurrency <= 0 {
		cfg.FeatureConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		http:        resty.New().SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		logger:      logger.Named("spotify"),
		probeID:     cfg.ProbePlaylistID,
		batchSize:   cfg.FeatureBatchSize,
		concurrency: cfg.FeatureConcurrency,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c.http.
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(c.logger.Sugar()).
		OnBeforeRequest(c.throttle)
	c.configureRetry(cfg.RetryMaxBackoff)
	return c
}

func (c *Client) throttle(_ *resty.Client, r *resty.Request) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(r.Context())
}

// get issues an authenticated GET and returns the body once the error
// envelope has been ruled out. path may be absolute, as pagination
// cursors are.
func (c *Client) get(ctx context.Context, op, token, path string, query map[string]string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	body := resp.Body()
	if err := checkEnvelope(resp.StatusCode(), body); err != nil {
		return body, err
	}
	return body, nil
}

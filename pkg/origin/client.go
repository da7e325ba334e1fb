// Package origin fetches fresh page content from the origin server, bypassing
// the page cache.
package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for origin fetches.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecache_origin_requests_total",
		Help: "Total origin fetches by status",
	}, []string{"status"})

	originRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagecache_origin_request_duration_seconds",
		Help:    "Origin fetch duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecache_origin_errors_total",
		Help: "Total origin fetch errors by class",
	}, []string{"class"})
)

// Fetcher is a synchronous GET against the origin.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Client fetches pages from the origin.
type Client struct {
	httpClient *http.Client
	config     Config
	backend    *url.URL
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// UserAgent is sent with every fetch.
	UserAgent string

	// Timeout bounds one fetch including the body read.
	Timeout time.Duration

	// MaxBodyBytes caps the accepted page size. Zero means no limit.
	MaxBodyBytes int64

	// FollowRedirects lets the client follow 3xx responses.
	FollowRedirects bool

	// Backend, when set, receives every fetch in place of the page's own
	// scheme and host. The page host is kept in the Host header.
	Backend string
}

// DefaultConfig returns the default fetch configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent:       "pagecache/1.0",
		Timeout:         30 * time.Second,
		MaxBodyBytes:    32 << 20,
		FollowRedirects: true,
	}
}

// New creates an origin client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	var backend *url.URL
	if cfg.Backend != "" {
		u, err := url.Parse(cfg.Backend)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid backend url %q", cfg.Backend)
		}
		backend = u
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	if !cfg.FollowRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Client{
		httpClient: hc,
		config:     cfg,
		backend:    backend,
		logger:     logger.With().Str("component", "origin").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Fetch GETs rawURL and returns the body of a 200 response.
// Every other outcome is an *Error matching ErrOriginUnavailable.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		originRequestDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.backend != nil {
		req.Host = req.URL.Host
		req.URL.Scheme = c.backend.Scheme
		req.URL.Host = c.backend.Host
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		originRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, c.fail(&Error{URL: rawURL, ErrorClass: ErrorClassNetwork, Err: err})
	}
	defer resp.Body.Close()

	originRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, c.fail(&Error{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
		})
	}

	var body io.Reader = resp.Body
	if c.config.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, c.config.MaxBodyBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, c.fail(&Error{URL: rawURL, StatusCode: resp.StatusCode, ErrorClass: ErrorClassBody, Err: err})
	}
	if c.config.MaxBodyBytes > 0 && int64(len(data)) > c.config.MaxBodyBytes {
		return nil, c.fail(&Error{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassBody,
			Err:        fmt.Errorf("body exceeds %d bytes", c.config.MaxBodyBytes),
		})
	}

	c.logger.Debug().
		Str("url", rawURL).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Fetched page from origin")

	return data, nil
}

func (c *Client) fail(e *Error) error {
	originErrorsTotal.WithLabelValues(string(e.ErrorClass)).Inc()

	event := c.logger.Warn()
	if errors.Is(e.Err, context.Canceled) {
		event = c.logger.Debug()
	}
	event.Str("url", e.URL).
		Int("status_code", e.StatusCode).
		Str("error_class", string(e.ErrorClass)).
		AnErr("cause", e.Err).
		Msg("Origin fetch failed")
	return e
}

// classifyStatus categorizes a non-200 status.
func classifyStatus(code int) ErrorClass {
	switch {
	case code >= 500:
		return ErrorClassServer
	case code >= 400:
		return ErrorClassClient
	case code >= 300:
		return ErrorClassRedirect
	default:
		return ErrorClassStatus
	}
}

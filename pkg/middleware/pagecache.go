// Package middleware serves cached pages in front of an HTTP handler.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/pagecache/pkg/cache"
	"github.com/Sternrassler/pagecache/pkg/logging"
	"github.com/Sternrassler/pagecache/pkg/urlnorm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// HeaderStatus reports the cache decision on every cacheable response.
const HeaderStatus = "X-Page-Cache"

// Config switches the middleware's global behavior.
type Config struct {
	// Enabled turns the page cache on. When false every request goes to next.
	Enabled bool

	// Production disables the bypass parameter.
	Production bool

	// BypassParam skips the cache when set to "1" outside production.
	BypassParam string

	// RefreshParam forces a refresh of a cached page when set to "1".
	RefreshParam string
}

// DefaultConfig returns an enabled non-production configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		BypassParam:  "nocache",
		RefreshParam: "refresh",
	}
}

// Options tune the cache for one route.
type Options struct {
	// TTL overrides the manager's TTL when positive.
	TTL time.Duration

	// ContentType selects the stored variant and response type, "html" or "json".
	ContentType string
}

// PageCache is the page cache middleware factory.
type PageCache struct {
	manager *cache.Manager
	norm    *urlnorm.Normalizer
	config  Config
	logger  zerolog.Logger
}

// New creates the middleware factory.
func New(manager *cache.Manager, cfg Config, logger zerolog.Logger) *PageCache {
	if manager == nil {
		panic("cache manager cannot be nil")
	}
	if cfg.BypassParam == "" {
		cfg.BypassParam = "nocache"
	}
	if cfg.RefreshParam == "" {
		cfg.RefreshParam = "refresh"
	}
	return &PageCache{
		manager: manager,
		norm:    manager.Normalizer(),
		config:  cfg,
		logger:  logger.With().Str("component", "page-cache-middleware").Logger(),
	}
}

// Handler returns the middleware for a route with the given options.
func (p *PageCache) Handler(opts Options) func(http.Handler) http.Handler {
	if opts.ContentType == "" {
		opts.ContentType = cache.DefaultContentType
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !p.cacheable(r) {
				next.ServeHTTP(w, r)
				return
			}

			u, err := p.norm.Normalize(r)
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("Request URL not cacheable")
				p.logger.Debug().Err(err).Str("host", r.Host).Str("path", r.URL.Path).Msg("Skipping page cache")
				next.ServeHTTP(w, r)
				return
			}

			lookup := p.manager.Lookup(r.Context(), u, opts.ContentType, cache.LookupOptions{
				TTL:          opts.TTL,
				ForceRefresh: r.URL.Query().Get(p.config.RefreshParam) == "1",
			})
			w.Header().Set(HeaderStatus, lookup.Decision.String())
			logging.AnnotatePage(r, logging.Page{
				URL:         u.String(),
				Key:         lookup.Key.String(),
				ContentType: opts.ContentType,
				State:       lookup.Decision.String(),
			})

			if !lookup.Decision.Hit() {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", mimeType(opts.ContentType))
			w.Header().Set("Content-Length", strconv.Itoa(len(lookup.Content)))
			if age := lookup.Age(time.Now()); age > 0 {
				w.Header().Set("Age", strconv.Itoa(int(age.Seconds())))
			}
			w.WriteHeader(http.StatusOK)
			if r.Method != http.MethodHead {
				w.Write(lookup.Content)
			}
		})
	}
}

// cacheable reports whether r may be answered from the cache.
func (p *PageCache) cacheable(r *http.Request) bool {
	if !p.config.Enabled {
		return false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if !p.config.Production && r.URL.Query().Get(p.config.BypassParam) == "1" {
		return false
	}
	return true
}

func mimeType(contentType string) string {
	switch contentType {
	case "json":
		return "application/json"
	case "html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

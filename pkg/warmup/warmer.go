package warmup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/pagecache/pkg/cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds warmer configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page fetches
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// ContentType of the warmed variants (default: html)
	ContentType string
}

// DefaultConfig returns the default warm-up limits
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        30 * time.Second,
		ContentType:    cache.DefaultContentType,
	}
}

// Refresher fetches one page from the origin and stores it.
// *cache.Manager implements it.
type Refresher interface {
	Refresh(ctx context.Context, unit cache.RefreshUnit) error
}

// Report summarizes one warm-up run
type Report struct {
	Total     int
	Succeeded int
	Failures  map[string]error
	Duration  time.Duration
}

// Failed returns the number of URLs that could not be cached
func (r Report) Failed() int {
	return len(r.Failures)
}

// Warmer refreshes many pages with bounded concurrency
type Warmer struct {
	refresher Refresher
	config    Config
	logger    zerolog.Logger
}

// New creates a warmer
func New(r Refresher, cfg Config, logger zerolog.Logger) *Warmer {
	if r == nil {
		panic("refresher cannot be nil")
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ContentType == "" {
		cfg.ContentType = cache.DefaultContentType
	}

	return &Warmer{
		refresher: r,
		config:    cfg,
		logger:    logger.With().Str("component", "warmup").Logger(),
	}
}

// Warm fetches and stores every URL. Failed pages are collected in the report
// and do not stop the run; only cancellation of ctx does.
func (w *Warmer) Warm(ctx context.Context, urls []string) (Report, error) {
	start := time.Now()
	report := Report{
		Total:    len(urls),
		Failures: make(map[string]error),
	}

	w.logger.Info().
		Int("urls", len(urls)).
		Int("concurrency", w.config.MaxConcurrency).
		Msg("Starting cache warm-up")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.MaxConcurrency)

	for _, url := range urls {
		url := url
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			pageCtx, cancel := context.WithTimeout(gctx, w.config.Timeout)
			err := w.refresher.Refresh(pageCtx, cache.RefreshUnit{URL: url, ContentType: w.config.ContentType})
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures[url] = err
				w.logger.Warn().Err(err).Str("url", url).Msg("Page warm-up failed")
				return nil
			}
			report.Succeeded++

			// Progress logging every 50 pages
			if report.Succeeded%50 == 0 {
				w.logger.Info().
					Int("warmed", report.Succeeded).
					Int("total", report.Total).
					Float64("progress_pct", float64(report.Succeeded)/float64(report.Total)*100).
					Msg("Warm-up progress")
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	report.Duration = time.Since(start)

	if err != nil {
		w.logger.Warn().
			Err(err).
			Int("warmed", report.Succeeded).
			Int("total", report.Total).
			Msg("Warm-up cancelled - returning partial report")
		return report, fmt.Errorf("warm-up cancelled (%d/%d pages): %w", report.Succeeded, report.Total, err)
	}

	w.logger.Info().
		Int("warmed", report.Succeeded).
		Int("failed", report.Failed()).
		Dur("duration", report.Duration).
		Msg("Warm-up complete")

	return report, nil
}

// ReadURLs reads one URL per line. Blank lines and lines starting with '#'
// are skipped.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return urls, nil
}

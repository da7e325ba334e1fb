package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/pagecache/pkg/logging"
	"github.com/Sternrassler/pagecache/pkg/origin"
	"github.com/Sternrassler/pagecache/pkg/store"
	"github.com/Sternrassler/pagecache/pkg/urlnorm"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Scheduler runs refresh units after a delay.
type Scheduler interface {
	// Schedule hands unit over for execution no earlier than delay from now.
	Schedule(ctx context.Context, unit RefreshUnit, delay time.Duration) error

	// Name labels the scheduler in metrics and logs.
	Name() string
}

// StatsRecorder receives the daily request, hit and refresh counts.
type StatsRecorder interface {
	RequestCount(ctx context.Context) error
	HitCount(ctx context.Context) error
	RefreshCount(ctx context.Context) error
}

// Config holds the manager configuration.
type Config struct {
	// Store holds the cached pages. Required.
	Store store.Store

	// Fetcher re-renders pages from the origin. Required.
	Fetcher origin.Fetcher

	// Normalizer parses URLs handed back by schedulers and the CLI. Required.
	Normalizer *urlnorm.Normalizer

	// Scheduler runs deferred refreshes. Nil disables scheduling.
	Scheduler Scheduler

	// Stats receives daily counts. Nil disables counting.
	Stats StatsRecorder

	// TTL is how long a page stays fresh unless overridden per lookup.
	TTL time.Duration

	// RefreshDelay is the delay passed to the scheduler.
	RefreshDelay time.Duration

	// BypassParam is the query parameter that tells the origin to skip the cache.
	BypassParam string
}

// DefaultConfig returns a configuration with the default TTL (15 days),
// refresh delay (30s) and bypass parameter ("nocache").
func DefaultConfig(st store.Store, fetcher origin.Fetcher, norm *urlnorm.Normalizer) Config {
	return Config{
		Store:        st,
		Fetcher:      fetcher,
		Normalizer:   norm,
		TTL:          15 * 24 * time.Hour,
		RefreshDelay: 30 * time.Second,
		BypassParam:  "nocache",
	}
}

// Manager reads, evaluates and refreshes cached pages.
type Manager struct {
	config Config
	logger zerolog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewManager creates a page cache manager.
func NewManager(cfg Config, logger zerolog.Logger) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive (got %s)", cfg.TTL)
	}
	if cfg.RefreshDelay < 0 {
		return nil, fmt.Errorf("refresh delay must not be negative (got %s)", cfg.RefreshDelay)
	}
	if cfg.BypassParam == "" {
		cfg.BypassParam = "nocache"
	}

	return &Manager{
		config: cfg,
		logger: logger.With().Str(logging.FieldComponent, "page-cache").Logger(),
		now:    time.Now,
	}, nil
}

// Normalizer returns the URL normalizer the manager was built with.
func (m *Manager) Normalizer() *urlnorm.Normalizer {
	return m.config.Normalizer
}

// TTL returns the default freshness window.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Read returns the cached page for u. It never fails: a missing page or any
// store error yields an empty ReadResult.
func (m *Manager) Read(ctx context.Context, u urlnorm.URL, contentType string) ReadResult {
	key := DeriveKey(u.String(), contentType)
	result := ReadResult{Key: key}

	data, updatedAt, err := m.entry(ctx, key.String())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
		case errors.Is(err, store.ErrMetadataUnavailable):
			StoreErrors.WithLabelValues("stat").Inc()
		default:
			StoreErrors.WithLabelValues("get").Inc()
		}
		m.logger.Debug().Err(err).Str(logging.FieldURL, u.String()).Str(logging.FieldKey, key.String()).Msg("Page cache read failed")
		return result
	}

	result.Content = data
	result.UpdatedAt = updatedAt
	return result
}

// entry reads content and write time of key, in one read when the store
// supports it.
func (m *Manager) entry(ctx context.Context, key string) ([]byte, time.Time, error) {
	if er, ok := m.config.Store.(store.EntryReader); ok {
		return er.Entry(ctx, key)
	}

	data, err := m.config.Store.Get(ctx, key)
	if err != nil {
		return nil, time.Time{}, err
	}
	updatedAt, err := m.config.Store.LastWriteTime(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrMetadataUnavailable) {
			err = fmt.Errorf("%w: %v", store.ErrMetadataUnavailable, err)
		}
		return nil, time.Time{}, err
	}
	return data, updatedAt, nil
}

// LookupOptions tune a single Lookup.
type LookupOptions struct {
	// TTL overrides the configured TTL when positive.
	TTL time.Duration

	// ForceRefresh serves cached content but schedules a refresh regardless of age.
	ForceRefresh bool
}

// Lookup is the result of Manager.Lookup.
type Lookup struct {
	ReadResult
	Decision Decision
}

// Lookup counts the request, reads the page for u, evaluates its freshness,
// records hit and refresh counts and schedules a refresh when needed.
func (m *Manager) Lookup(ctx context.Context, u urlnorm.URL, contentType string, opts LookupOptions) Lookup {
	ttl := m.config.TTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	m.count(ctx, StatsRecorder.RequestCount)

	read := m.Read(ctx, u, contentType)
	decision := Evaluate(read.Content, read.UpdatedAt, ttl, m.now(), opts.ForceRefresh)
	LookupsTotal.WithLabelValues(decision.String()).Inc()

	if decision.Hit() {
		m.count(ctx, StatsRecorder.HitCount)
	}
	if decision == HitStale {
		m.count(ctx, StatsRecorder.RefreshCount)
	}
	if decision.NeedsRefresh() {
		m.schedule(ctx, RefreshUnit{URL: u.String(), ContentType: read.Key.ContentType})
	}

	m.logger.Debug().
		Str(logging.FieldURL, u.String()).
		Str(logging.FieldKey, read.Key.String()).
		Str(logging.FieldState, decision.String()).
		Msg("Page cache lookup")

	return Lookup{ReadResult: read, Decision: decision}
}

func (m *Manager) count(ctx context.Context, fn func(StatsRecorder, context.Context) error) {
	if m.config.Stats == nil {
		return
	}
	// Counter failures never affect serving; the recorder logs them.
	_ = fn(m.config.Stats, ctx)
}

func (m *Manager) schedule(ctx context.Context, unit RefreshUnit) {
	if m.config.Scheduler == nil {
		m.logger.Debug().Str("url", unit.URL).Msg("No scheduler configured, refresh skipped")
		return
	}

	if err := m.config.Scheduler.Schedule(ctx, unit, m.config.RefreshDelay); err != nil {
		m.logger.Warn().Err(err).
			Str("url", unit.URL).
			Str("content_type", unit.ContentType).
			Msg("Failed to schedule page refresh")
		return
	}
	RefreshesScheduled.WithLabelValues(m.config.Scheduler.Name()).Inc()
}

// FetchURL returns the origin URL used to re-render u: the page path with the
// bypass parameter first, followed by the cached query parameters.
func (m *Manager) FetchURL(u urlnorm.URL) string {
	target := u.Site() + u.Path + "?" + m.config.BypassParam + "=1"
	if q := u.RawQuery(); q != "" {
		target += "&" + q
	}
	return target
}

// Create fetches u from the origin and stores the body on a 200 response.
// It reports whether the page was stored; on failure any existing entry is
// left untouched.
func (m *Manager) Create(ctx context.Context, u urlnorm.URL, contentType string) bool {
	return m.create(ctx, u, contentType) == nil
}

// create is Create with the failure cause. Concurrent creates of one key share
// a single origin fetch. The shared fetch is detached from the caller that
// started it, so a cancelled caller only stops its own wait; the fetcher's
// timeout bounds the fetch.
func (m *Manager) create(ctx context.Context, u urlnorm.URL, contentType string) error {
	key := DeriveKey(u.String(), contentType)

	leader := false
	ch := m.group.DoChan(key.String(), func() (any, error) {
		leader = true
		return nil, m.fetchAndStore(context.WithoutCancel(ctx), u, key)
	})

	select {
	case res := <-ch:
		if !leader {
			RefreshesCoalesced.Inc()
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) fetchAndStore(ctx context.Context, u urlnorm.URL, key CacheKey) error {
	start := m.now()
	target := m.FetchURL(u)

	data, err := m.config.Fetcher.Fetch(ctx, target)
	if err != nil {
		CreatesTotal.WithLabelValues("origin_error").Inc()
		m.logger.Warn().Err(err).
			Str("url", u.String()).
			Str("key", key.String()).
			Msg("Page create failed, keeping existing entry")
		return err
	}

	if err := m.config.Store.Put(ctx, key.String(), data); err != nil {
		CreatesTotal.WithLabelValues("store_error").Inc()
		StoreErrors.WithLabelValues("put").Inc()
		m.logger.Error().Err(err).
			Str("url", u.String()).
			Str("key", key.String()).
			Msg("Failed to store page")
		return fmt.Errorf("store page %s: %w", key, err)
	}

	CreatesTotal.WithLabelValues("stored").Inc()
	m.logger.Info().
		Str("url", u.String()).
		Str("key", key.String()).
		Int("bytes", len(data)).
		Dur("duration", m.now().Sub(start)).
		Msg("Page cached")
	return nil
}

// Refresh executes a scheduled refresh unit.
func (m *Manager) Refresh(ctx context.Context, unit RefreshUnit) error {
	u, err := m.config.Normalizer.Parse(unit.URL)
	if err != nil {
		return fmt.Errorf("refresh %q: %w", unit.URL, err)
	}
	return m.create(ctx, u, unit.ContentType)
}

// Delete removes the cached page for u. Deleting an absent page succeeds.
func (m *Manager) Delete(ctx context.Context, u urlnorm.URL, contentType string) bool {
	key := DeriveKey(u.String(), contentType)
	if err := m.config.Store.Delete(ctx, key.String()); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		m.logger.Warn().Err(err).Str("url", u.String()).Str("key", key.String()).Msg("Failed to delete page")
		return false
	}
	return true
}

// ClearAll removes every cached page, one top-level shard at a time. It stops
// at the first shard that can not be removed and reports it in a *ClearError.
func (m *Manager) ClearAll(ctx context.Context) error {
	shards, err := m.config.Store.List(ctx)
	if err != nil {
		StoreErrors.WithLabelValues("list").Inc()
		return &ClearError{Err: err}
	}

	for i, shard := range shards {
		if err := m.config.Store.DeleteRecursive(ctx, shard); err != nil {
			StoreErrors.WithLabelValues("clear").Inc()
			m.logger.Error().Err(err).
				Str(logging.FieldShard, shard).
				Int("cleared", i).
				Int("remaining", len(shards)-i).
				Msg("Page cache clear aborted")
			return &ClearError{Shard: shard, Err: err}
		}
	}

	m.logger.Info().Int("shards", len(shards)).Msg("Page cache cleared")
	return nil
}

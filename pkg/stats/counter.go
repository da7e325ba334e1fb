package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var statsErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pagecache_stats_errors_total",
		Help: "Total number of failed stats counter operations",
	},
	[]string{"operation"}, // "request", "hit", "refresh", "read", "reset"
)

// Counter records daily request, hit and refresh counts.
//
// Each increment first checks whether today's record exists and initializes
// it when it does not. The check and the write are separate store calls, so
// two processes racing on the first request of a day may lose one count.
type Counter struct {
	store  Store
	prefix string
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Counter.
type Option func(*Counter)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Counter) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithClock sets the time source used to pick the current day.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) { c.now = now }
}

// NewCounter creates a Counter on top of store.
func NewCounter(store Store, logger zerolog.Logger, opts ...Option) *Counter {
	if store == nil {
		panic("stats store cannot be nil")
	}
	c := &Counter{
		store:  store,
		prefix: DefaultKeyPrefix,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the record key for day.
func (c *Counter) Key(day string) string {
	return c.prefix + ":" + day
}

// RequestCount counts one cacheable request.
func (c *Counter) RequestCount(ctx context.Context) error {
	return c.count(ctx, "request", FieldTotal, map[string]int64{
		FieldTotal: 1, FieldHits: 0, FieldRefreshes: 0,
	})
}

// HitCount counts one request served from the cache.
func (c *Counter) HitCount(ctx context.Context) error {
	return c.count(ctx, "hit", FieldHits, map[string]int64{
		FieldTotal: 1, FieldHits: 1, FieldRefreshes: 0,
	})
}

// RefreshCount counts one stale hit that scheduled a refresh.
func (c *Counter) RefreshCount(ctx context.Context) error {
	return c.count(ctx, "refresh", FieldRefreshes, map[string]int64{
		FieldTotal: 1, FieldHits: 1, FieldRefreshes: 1,
	})
}

// count increments field, or writes init when the day has no hit field yet.
func (c *Counter) count(ctx context.Context, op, field string, init map[string]int64) error {
	day := Day(c.now())
	key := c.Key(day)

	exists, err := c.store.HasField(ctx, key, FieldHits)
	if err == nil {
		if exists {
			err = c.store.IncrField(ctx, key, field, 1)
		} else {
			err = c.store.SetFields(ctx, key, init)
		}
	}
	if err != nil {
		statsErrorsTotal.WithLabelValues(op).Inc()
		c.logger.Warn().Err(err).Str("day", day).Str("operation", op).Msg("Failed to update page cache stats")
		return fmt.Errorf("%s count: %w", op, err)
	}
	return nil
}

// StatsFor returns the counters and rates recorded for day (YYYYMMDD).
// A day without a record yields zero counts and "0%" rates.
func (c *Counter) StatsFor(ctx context.Context, day string) (Stats, error) {
	if _, err := time.Parse(DayLayout, day); err != nil {
		return Stats{}, fmt.Errorf("invalid day %q: want YYYYMMDD", day)
	}

	fields, err := c.store.Fields(ctx, c.Key(day))
	if err != nil {
		statsErrorsTotal.WithLabelValues("read").Inc()
		return Stats{}, fmt.Errorf("read stats for %s: %w", day, err)
	}

	return Record{
		Day:       day,
		Total:     fields[FieldTotal],
		Hits:      fields[FieldHits],
		Refreshes: fields[FieldRefreshes],
	}.WithRates(), nil
}

// Today returns the stats of the current day.
func (c *Counter) Today(ctx context.Context) (Stats, error) {
	return c.StatsFor(ctx, Day(c.now()))
}

// Reset deletes the current day's record.
func (c *Counter) Reset(ctx context.Context) error {
	day := Day(c.now())
	if err := c.store.Delete(ctx, c.Key(day)); err != nil {
		statsErrorsTotal.WithLabelValues("reset").Inc()
		return fmt.Errorf("reset stats for %s: %w", day, err)
	}
	c.logger.Info().Str("day", day).Msg("Page cache stats reset")
	return nil
}

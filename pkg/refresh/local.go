package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/pagecache/pkg/cache"
	"github.com/rs/zerolog"
)

// ErrClosed is returned when scheduling on a closed Local scheduler.
var ErrClosed = errors.New("refresh scheduler closed")

// LocalConfig configures the in-process scheduler.
type LocalConfig struct {
	// Concurrency bounds the refreshes running at once. Units that come due
	// while all slots are busy are dropped; the next stale read schedules
	// them again.
	Concurrency int

	// Timeout bounds one refresh.
	Timeout time.Duration
}

// DefaultLocalConfig returns the default in-process limits.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		Concurrency: 8,
		Timeout:     time.Minute,
	}
}

// Local runs refreshes in background goroutines of the serving process.
// A unit that is already pending is not scheduled twice.
type Local struct {
	config LocalConfig
	logger zerolog.Logger
	sem    chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	refresher Refresher
	pending   map[cache.RefreshUnit]*time.Timer
	closed    bool
}

// NewLocal creates an in-process scheduler. Attach must be called before
// the first unit comes due.
func NewLocal(cfg LocalConfig, logger zerolog.Logger) *Local {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLocalConfig().Timeout
	}
	return &Local{
		config:  cfg,
		logger:  logger.With().Str("component", "refresh-local").Logger(),
		sem:     make(chan struct{}, cfg.Concurrency),
		pending: make(map[cache.RefreshUnit]*time.Timer),
	}
}

// Attach sets the Refresher that executes due units.
func (l *Local) Attach(r Refresher) {
	l.mu.Lock()
	l.refresher = r
	l.mu.Unlock()
}

// Name implements cache.Scheduler.
func (l *Local) Name() string { return "local" }

// Pending returns the number of units waiting for their delay to pass.
func (l *Local) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Schedule implements cache.Scheduler.
func (l *Local) Schedule(_ context.Context, unit cache.RefreshUnit, delay time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if _, dup := l.pending[unit]; dup {
		l.logger.Debug().Str("url", unit.URL).Msg("Refresh already pending")
		return nil
	}

	l.wg.Add(1)
	l.pending[unit] = time.AfterFunc(delay, func() {
		defer l.wg.Done()
		l.run(unit)
	})
	return nil
}

func (l *Local) run(unit cache.RefreshUnit) {
	l.mu.Lock()
	delete(l.pending, unit)
	r := l.refresher
	l.mu.Unlock()

	if r == nil {
		l.logger.Warn().Str("url", unit.URL).Msg("No refresher attached, refresh dropped")
		return
	}

	select {
	case l.sem <- struct{}{}:
	default:
		l.logger.Warn().Str("url", unit.URL).Msg("Refresh slots exhausted, refresh dropped")
		return
	}
	defer func() { <-l.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), l.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := r.Refresh(ctx, unit); err != nil {
		l.logger.Warn().Err(err).
			Str("url", unit.URL).
			Str("content_type", unit.ContentType).
			Dur("duration", time.Since(start)).
			Msg("Refresh failed")
		return
	}
	l.logger.Debug().Str("url", unit.URL).Dur("duration", time.Since(start)).Msg("Refresh done")
}

// Close cancels pending units and waits for running refreshes until ctx is done.
func (l *Local) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	for unit, timer := range l.pending {
		if timer.Stop() {
			l.wg.Done()
		}
		delete(l.pending, unit)
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

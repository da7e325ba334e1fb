package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/pagecache/pkg/cache"
	"github.com/Sternrassler/pagecache/pkg/origin"
	"github.com/Sternrassler/pagecache/pkg/urlnorm"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// AsynqConfig holds the enqueue options of refresh tasks.
type AsynqConfig struct {
	// Queue is the asynq queue refresh tasks go to.
	Queue string

	// MaxRetry bounds asynq's retries of a failed refresh.
	MaxRetry int

	// Timeout bounds one task execution.
	Timeout time.Duration

	// Unique, when positive, drops duplicate refreshes of the same unit
	// enqueued within this window.
	Unique time.Duration
}

// DefaultAsynqConfig returns the default enqueue options.
func DefaultAsynqConfig() AsynqConfig {
	return AsynqConfig{
		Queue:    "pagecache",
		MaxRetry: 3,
		Timeout:  2 * time.Minute,
	}
}

// Asynq schedules refreshes as delayed asynq tasks.
type Asynq struct {
	client *asynq.Client
	config AsynqConfig
	logger zerolog.Logger
}

// NewAsynq creates a scheduler that enqueues through client.
func NewAsynq(client *asynq.Client, cfg AsynqConfig, logger zerolog.Logger) *Asynq {
	if client == nil {
		panic("asynq client cannot be nil")
	}
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	return &Asynq{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "refresh-asynq").Logger(),
	}
}

// Name implements cache.Scheduler.
func (a *Asynq) Name() string { return "asynq" }

// Schedule implements cache.Scheduler.
func (a *Asynq) Schedule(ctx context.Context, unit cache.RefreshUnit, delay time.Duration) error {
	task, err := NewTask(unit)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(a.config.Queue),
		asynq.MaxRetry(a.config.MaxRetry),
		asynq.ProcessIn(delay),
	}
	if a.config.Timeout > 0 {
		opts = append(opts, asynq.Timeout(a.config.Timeout))
	}
	if a.config.Unique > 0 {
		opts = append(opts, asynq.Unique(a.config.Unique))
	}

	info, err := a.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			a.logger.Debug().Str("url", unit.URL).Msg("Refresh already queued")
			return nil
		}
		return fmt.Errorf("enqueue refresh: %w", err)
	}

	a.logger.Debug().
		Str("url", unit.URL).
		Str("content_type", unit.ContentType).
		Str("task_id", info.ID).
		Time("process_at", info.NextProcessAt).
		Msg("Refresh enqueued")
	return nil
}

// NewHandler returns the asynq handler executing refresh tasks with r.
// Undecodable payloads, malformed URLs and non-retryable origin responses are
// not retried; everything else is left to asynq's retry policy.
func NewHandler(r Refresher, logger zerolog.Logger) asynq.HandlerFunc {
	logger = logger.With().Str("component", "refresh-worker").Logger()

	return func(ctx context.Context, t *asynq.Task) error {
		unit, err := ParseTask(t)
		if err != nil {
			logger.Error().Err(err).Msg("Dropping refresh task")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		start := time.Now()
		err = r.Refresh(ctx, unit)
		duration := time.Since(start)

		if err == nil {
			logger.Info().Str("url", unit.URL).Dur("duration", duration).Msg("Refresh done")
			return nil
		}
		if errors.Is(err, urlnorm.ErrMalformedURL) || !origin.IsRetryable(err) {
			logger.Warn().Err(err).Str("url", unit.URL).Dur("duration", duration).Msg("Refresh failed permanently, dropping task")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Warn().Err(err).Str("url", unit.URL).Dur("duration", duration).Msg("Refresh failed, will retry")
		return err
	}
}

// Register adds the refresh handler to mux.
func Register(mux *asynq.ServeMux, r Refresher, logger zerolog.Logger) {
	mux.Handle(TypeRefresh, NewHandler(r, logger))
}

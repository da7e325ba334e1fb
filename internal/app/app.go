// Package app wires the page cache components from a config.Config. It is
// shared by the server, the worker and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/pagecache/internal/config"
	"github.com/Sternrassler/pagecache/pkg/cache"
	"github.com/Sternrassler/pagecache/pkg/origin"
	"github.com/Sternrassler/pagecache/pkg/refresh"
	"github.com/Sternrassler/pagecache/pkg/stats"
	"github.com/Sternrassler/pagecache/pkg/store"
	"github.com/Sternrassler/pagecache/pkg/urlnorm"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the wired components.
type App struct {
	Config     config.Config
	Normalizer *urlnorm.Normalizer
	Store      store.Store
	Stats      *stats.Counter
	Manager    *cache.Manager

	// Redis is nil when no component uses Redis.
	Redis *redis.Client

	logger  zerolog.Logger
	closers []func(context.Context) error
}

// New opens the store and the Redis connection and builds the cache manager.
// Close releases everything New opened, also when New fails halfway.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	a.Normalizer, err = urlnorm.New(cfg.URLPattern, cfg.Params)
	if err != nil {
		return nil, err
	}

	if cfg.Store != config.StoreMemory || cfg.Scheduler == config.SchedulerAsynq {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.onClose(func(context.Context) error { return a.Redis.Close() })

		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	}

	if err := a.openStore(); err != nil {
		return nil, err
	}

	var statsStore stats.Store
	if cfg.Store == config.StoreMemory {
		statsStore = stats.NewMemory()
	} else {
		statsStore = stats.NewRedisStore(a.Redis)
	}
	a.Stats = stats.NewCounter(statsStore, logger.With().Str("component", "stats").Logger(), stats.WithKeyPrefix(cfg.StatKey))

	fetcherCfg := origin.DefaultConfig()
	fetcherCfg.UserAgent = cfg.UserAgent
	fetcherCfg.Timeout = cfg.FetchTimeout.Std()
	fetcherCfg.Backend = cfg.OriginURL
	fetcher, err := origin.New(fetcherCfg, logger)
	if err != nil {
		return nil, err
	}

	scheduler, attach := a.newScheduler()

	managerCfg := cache.DefaultConfig(a.Store, fetcher, a.Normalizer)
	managerCfg.TTL = cfg.Alive.Std()
	managerCfg.RefreshDelay = cfg.Delay.Std()
	managerCfg.BypassParam = cfg.BypassParam
	managerCfg.Scheduler = scheduler
	managerCfg.Stats = a.Stats

	a.Manager, err = cache.NewManager(managerCfg, logger)
	if err != nil {
		return nil, err
	}
	if attach != nil {
		attach.Attach(a.Manager)
	}

	logger.Info().
		Str("store", cfg.Store).
		Str("scheduler", scheduler.Name()).
		Dur("ttl", managerCfg.TTL).
		Dur("delay", managerCfg.RefreshDelay).
		Strs("params", a.Normalizer.Params()).
		Msg("Page cache ready")
	return a, nil
}

func (a *App) openStore() error {
	switch a.Config.Store {
	case config.StoreLevelDB:
		db, err := store.OpenLevelDB(a.Config.StorePath, a.logger)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { return db.Close() })
		a.Store = db
	case config.StoreRedis:
		a.Store = store.NewRedisStore(a.Redis, store.DefaultRedisPrefix)
	case config.StoreMemory:
		a.Store = store.NewMemory()
	default:
		return fmt.Errorf("unknown store %q", a.Config.Store)
	}
	return nil
}

func (a *App) newScheduler() (cache.Scheduler, *refresh.Local) {
	if a.Config.Scheduler == config.SchedulerAsynq {
		client := asynq.NewClient(a.RedisOpt())
		a.onClose(func(context.Context) error { return client.Close() })

		cfg := refresh.DefaultAsynqConfig()
		cfg.Queue = a.Config.Queue
		cfg.MaxRetry = a.Config.MaxRetry
		cfg.Unique = a.Config.Unique.Std()
		return refresh.NewAsynq(client, cfg, a.logger), nil
	}

	cfg := refresh.DefaultLocalConfig()
	cfg.Concurrency = a.Config.WorkerConcurrency
	local := refresh.NewLocal(cfg, a.logger)
	a.onClose(local.Close)
	return local, local
}

// Logger returns the root logger the components were built with.
func (a *App) Logger() zerolog.Logger {
	return a.logger
}

// RedisOpt returns the asynq connection options for the configured Redis.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: a.Config.RedisAddr}
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/pagecache/internal/app"
	"github.com/Sternrassler/pagecache/internal/config"
	"github.com/Sternrassler/pagecache/pkg/logging"
	"github.com/Sternrassler/pagecache/pkg/refresh"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up page cache")
	}
	defer pc.Close(context.Background())

	srv := newServer(pc, logger)
	if err := srv.Start(newMux(pc, logger)); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start worker")
	}
	logger.Info().
		Str("queue", cfg.Queue).
		Int("concurrency", cfg.WorkerConcurrency).
		Msg("Worker running")

	<-ctx.Done()
	logger.Info().Msg("Shutting down worker")
	srv.Shutdown()
}

func newServer(pc *app.App, logger zerolog.Logger) *asynq.Server {
	return asynq.NewServer(pc.RedisOpt(), asynq.Config{
		Concurrency: pc.Config.WorkerConcurrency,
		Queues: map[string]int{
			pc.Config.Queue: 1,
		},
		Logger:   asynqLogger{logger.With().Str("component", "asynq").Logger()},
		LogLevel: asynq.WarnLevel,
	})
}

func newMux(pc *app.App, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	refresh.Register(mux, pc.Manager, logger)
	return mux
}

// asynqLogger adapts zerolog to asynq.Logger.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }

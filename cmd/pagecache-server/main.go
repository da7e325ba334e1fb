package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/pagecache/internal/app"
	"github.com/Sternrassler/pagecache/internal/config"
	"github.com/Sternrassler/pagecache/pkg/logging"
	"github.com/Sternrassler/pagecache/pkg/metrics"
	"github.com/Sternrassler/pagecache/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
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

	if cfg.OriginURL == "" {
		logger.Fatal().Msg("ORIGIN_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up page cache")
	}

	router, err := newRouter(pc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create router")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("origin", cfg.OriginURL).
			Bool("enabled", cfg.Enable).
			Bool("production", cfg.Production()).
			Msg("Starting page cache server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := pc.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to release resources")
	}
}

// newRouter serves the health and metrics endpoints and proxies every other
// request to the origin behind the page cache.
func newRouter(pc *app.App, logger zerolog.Logger) (http.Handler, error) {
	proxy, err := newOriginProxy(pc.Config.OriginURL)
	if err != nil {
		return nil, err
	}

	pageCache := middleware.New(pc.Manager, middleware.Config{
		Enabled:     pc.Config.Enable,
		Production:  pc.Config.Production(),
		BypassParam: pc.Config.BypassParam,
	}, logger)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(logging.HTTPMiddleware(logger)...)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(pc))
	r.Handle("/metrics", metrics.Handler())

	if prefix := pc.Config.JSONPrefix; prefix != "" {
		r.With(pageCache.Handler(middleware.Options{ContentType: "json"})).Handle(prefix+"*", proxy)
	}
	r.With(pageCache.Handler(middleware.Options{})).Handle("/*", proxy)

	return r, nil
}

// newOriginProxy forwards requests to the origin, keeping the public Host.
func newOriginProxy(rawURL string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid origin url %q", rawURL)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = pr.In.Host
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			hlog.FromRequest(r).Warn().Err(err).Str("url", r.URL.RequestURI()).Msg("Origin request failed")
			http.Error(w, "origin unavailable", http.StatusBadGateway)
		},
	}, nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while Redis is unreachable.
func readyHandler(pc *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pc.Redis != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pc.Redis.Ping(ctx).Err(); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("Redis not reachable")
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// Package logging configures zerolog for the page cache binaries and defines
// the field names shared by page cache log events.
package logging

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a configured level name, e.g. "info" or "WARNING".
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Field names used across the page cache.
const (
	FieldComponent   = "component"
	FieldURL         = "url"
	FieldKey         = "key"
	FieldContentType = "content_type"
	FieldState       = "state"
	FieldShard       = "shard"
	FieldDay         = "day"
	FieldErrorClass  = "error_class"
	FieldRequestID   = "request_id"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written. Unknown names select info.
	Level LogLevel

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Output receives the log lines. Nil selects os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup builds the process logger, installs it as the zerolog global logger
// and sets the global level.
func Setup(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a component logger from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str(FieldComponent, component).Logger()
}

// Page describes the cache decision taken for one request.
type Page struct {
	URL         string
	Key         string
	ContentType string
	State       string
}

// AnnotatePage adds p to the request logger installed by HTTPMiddleware, so
// the access log line of r carries the cache decision. Without a request
// logger it does nothing.
func AnnotatePage(r *http.Request, p Page) {
	hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.
			Str(FieldURL, p.URL).
			Str(FieldKey, p.Key).
			Str(FieldContentType, p.ContentType).
			Str(FieldState, p.State)
	})
}

// HTTPMiddleware returns the access logging chain for an HTTP server. Each
// request gets a logger with a request id, and one line is written per
// response, at warn level for 5xx.
func HTTPMiddleware(logger zerolog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(logger),
		hlog.RequestIDHandler(FieldRequestID, "X-Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			l := hlog.FromRequest(r)
			event := l.Info()
			if status >= http.StatusInternalServerError {
				event = l.Warn()
			}
			event.
				Str("method", r.Method).
				Str("request_uri", r.URL.RequestURI()).
				Int("status_code", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("Request served")
		}),
	}
}

// Levels:
//
//   - debug: lookups, refresh dedupe, skipped requests
//   - info: pages stored, refreshes done, startup and shutdown
//   - warn: origin failures with the old entry kept, counter and scheduler failures
//   - error: store writes, aborted clears, invalid configuration
//
// A page event carries url and key; lookups add state, clears add shard,
// stats add day, origin failures add error_class.

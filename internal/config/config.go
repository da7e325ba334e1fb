// Package config loads page cache settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pagecache/pkg/urlnorm"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding the YAML config path.
const FileEnv = "PAGE_CACHE_CONFIG"

// Store drivers.
const (
	StoreLevelDB = "leveldb"
	StoreRedis   = "redis"
	StoreMemory  = "memory"
)

// Scheduler drivers.
const (
	SchedulerLocal = "local"
	SchedulerAsynq = "asynq"
)

// Duration is a time.Duration that also accepts a bare number of seconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String formats d like time.Duration.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: want seconds or a Go duration", s)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Config holds every setting of the server, worker and CLI.
type Config struct {
	// Enable turns the page cache middleware on.
	Enable bool `yaml:"enable" env:"PAGE_CACHE_ENABLE"`

	// Alive is the time a cached page stays fresh.
	Alive Duration `yaml:"alive" env:"PAGE_CACHE_ALIVE"`

	// URLPattern overrides the accepted URL shape.
	URLPattern string `yaml:"urlPattern" env:"PAGE_CACHE_URL_PATTERN"`

	// Params is the comma-separated query parameter allow-list.
	Params string `yaml:"params" env:"PAGE_CACHE_PARAMS"`

	// Delay postpones scheduled refreshes.
	Delay Duration `yaml:"delay" env:"PAGE_CACHE_DELAY"`

	// JSONPrefix is a path prefix whose pages are cached as the json variant.
	JSONPrefix string `yaml:"jsonPrefix" env:"PAGE_CACHE_JSON_PREFIX"`

	// AppEnv is the deployment environment; "production" disables the bypass parameter.
	AppEnv string `yaml:"appEnv" env:"APP_ENV"`

	BypassParam string `yaml:"bypassParam" env:"PAGE_CACHE_BYPASS_PARAM"`

	Store     string `yaml:"store" env:"PAGE_CACHE_STORE"`
	StorePath string `yaml:"storePath" env:"PAGE_CACHE_STORE_PATH"`
	RedisAddr string `yaml:"redisAddr" env:"REDIS_ADDR"`
	StatKey   string `yaml:"statKey" env:"PAGE_CACHE_STAT_KEY"`

	Scheduler string   `yaml:"scheduler" env:"PAGE_CACHE_SCHEDULER"`
	Queue     string   `yaml:"queue" env:"PAGE_CACHE_QUEUE"`
	MaxRetry  int      `yaml:"maxRetry" env:"PAGE_CACHE_MAX_RETRY"`
	Unique    Duration `yaml:"unique" env:"PAGE_CACHE_UNIQUE"`

	FetchTimeout Duration `yaml:"fetchTimeout" env:"FETCH_TIMEOUT"`
	UserAgent    string   `yaml:"userAgent" env:"USER_AGENT"`
	OriginURL    string   `yaml:"originURL" env:"ORIGIN_URL"`

	Port              string `yaml:"port" env:"PORT"`
	WorkerConcurrency int    `yaml:"workerConcurrency" env:"WORKER_CONCURRENCY"`

	LogLevel  string `yaml:"logLevel" env:"LOG_LEVEL"`
	LogPretty bool   `yaml:"logPretty" env:"LOG_PRETTY"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Enable:            true,
		Alive:             Duration(15 * 24 * time.Hour),
		Delay:             Duration(30 * time.Second),
		AppEnv:            "production",
		BypassParam:       "nocache",
		Store:             StoreLevelDB,
		StorePath:         "data/pagecache",
		RedisAddr:         "localhost:6379",
		StatKey:           "pagecache:request",
		Scheduler:         SchedulerLocal,
		Queue:             "pagecache",
		MaxRetry:          3,
		FetchTimeout:      Duration(30 * time.Second),
		UserAgent:         "pagecache/1.0",
		Port:              "8080",
		WorkerConcurrency: 10,
		LogLevel:          "info",
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// PAGE_CACHE_CONFIG variable is consulted and a missing variable means no file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if _, err := urlnorm.New(c.URLPattern, c.Params); err != nil {
		errs = append(errs, fmt.Errorf("urlPattern: %w", err))
	}
	if c.Alive <= 0 {
		errs = append(errs, fmt.Errorf("alive must be positive, got %s", c.Alive))
	}
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %s", c.Delay))
	}
	if c.JSONPrefix != "" && !strings.HasPrefix(c.JSONPrefix, "/") {
		errs = append(errs, fmt.Errorf("jsonPrefix must start with /, got %q", c.JSONPrefix))
	}
	if c.BypassParam == "" {
		errs = append(errs, errors.New("bypassParam is required"))
	}

	switch c.Store {
	case StoreLevelDB:
		if c.StorePath == "" {
			errs = append(errs, errors.New("storePath is required for the leveldb store"))
		}
	case StoreRedis, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}

	switch c.Scheduler {
	case SchedulerLocal, SchedulerAsynq:
	default:
		errs = append(errs, fmt.Errorf("unknown scheduler %q", c.Scheduler))
	}

	if c.MaxRetry < 0 {
		errs = append(errs, fmt.Errorf("maxRetry must not be negative, got %d", c.MaxRetry))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetchTimeout must be positive, got %s", c.FetchTimeout))
	}
	if c.WorkerConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("workerConcurrency must be positive, got %d", c.WorkerConcurrency))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Production reports whether the deployment environment is production.
func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

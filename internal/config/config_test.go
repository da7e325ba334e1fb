package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.True(t, cfg.Enable)
	require.Equal(t, 15*24*time.Hour, cfg.Alive.Std())
	require.Equal(t, 30*time.Second, cfg.Delay.Std())
	require.True(t, cfg.Production())
	require.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("PAGE_CACHE_ENABLE", "false")
	t.Setenv("PAGE_CACHE_ALIVE", "3600")
	t.Setenv("PAGE_CACHE_DELAY", "1m")
	t.Setenv("PAGE_CACHE_PARAMS", "page,sort")
	t.Setenv("APP_ENV", "local")
	t.Setenv("PAGE_CACHE_STORE", "redis")
	t.Setenv("PAGE_CACHE_SCHEDULER", "asynq")
	t.Setenv("PAGE_CACHE_MAX_RETRY", "5")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	require.False(t, cfg.Enable)
	require.Equal(t, time.Hour, cfg.Alive.Std())
	require.Equal(t, time.Minute, cfg.Delay.Std())
	require.Equal(t, "page,sort", cfg.Params)
	require.False(t, cfg.Production())
	require.Equal(t, StoreRedis, cfg.Store)
	require.Equal(t, SchedulerAsynq, cfg.Scheduler)
	require.Equal(t, 5, cfg.MaxRetry)
	require.Equal(t, 4, cfg.WorkerConcurrency)
	require.True(t, cfg.LogPretty)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagecache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
alive: 2h
params: page
store: memory
originURL: http://origin.internal
port: "9090"
`), 0o600))

	t.Setenv(FileEnv, path)
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 2*time.Hour, cfg.Alive.Std())
	require.Equal(t, "page", cfg.Params)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, "http://origin.internal", cfg.OriginURL)
	require.Equal(t, "7070", cfg.Port, "environment wins over the file")
	require.Equal(t, 30*time.Second, cfg.Delay.Std(), "unset keys keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("alive: [1"), 0o600))
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("PAGE_CACHE_DELAY", "soon")
		_, err := Load("")
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero alive", mutate: func(c *Config) { c.Alive = 0 }, expectError: true},
		{name: "negative delay", mutate: func(c *Config) { c.Delay = Duration(-time.Second) }, expectError: true},
		{name: "zero delay", mutate: func(c *Config) { c.Delay = 0 }},
		{name: "bad pattern", mutate: func(c *Config) { c.URLPattern = "(" }, expectError: true},
		{name: "pattern without groups", mutate: func(c *Config) { c.URLPattern = "^https?://.*" }, expectError: true},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "s3" }, expectError: true},
		{name: "leveldb without path", mutate: func(c *Config) { c.StorePath = "" }, expectError: true},
		{name: "memory without path", mutate: func(c *Config) { c.Store = StoreMemory; c.StorePath = "" }},
		{name: "unknown scheduler", mutate: func(c *Config) { c.Scheduler = "cron" }, expectError: true},
		{name: "negative retry", mutate: func(c *Config) { c.MaxRetry = -1 }, expectError: true},
		{name: "zero workers", mutate: func(c *Config) { c.WorkerConcurrency = 0 }, expectError: true},
		{name: "json prefix", mutate: func(c *Config) { c.JSONPrefix = "/api/" }},
		{name: "relative json prefix", mutate: func(c *Config) { c.JSONPrefix = "api" }, expectError: true},
		{name: "empty bypass", mutate: func(c *Config) { c.BypassParam = "" }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("Validate() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"1296000", 15 * 24 * time.Hour, false},
		{"30", 30 * time.Second, false},
		{"90s", 90 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalText(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if d.Std() != tt.expected {
				t.Errorf("UnmarshalText(%q) = %v, want %v", tt.input, d.Std(), tt.expected)
			}
		})
	}
}

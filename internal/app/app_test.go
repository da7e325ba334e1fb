package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/pagecache/internal/config"
	"github.com/Sternrassler/pagecache/pkg/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name      string
		mutate    func(*config.Config)
		wantRedis bool
		scheduler string
	}{
		{
			name:      "memory store with local scheduler",
			mutate:    func(c *config.Config) { c.Store = config.StoreMemory },
			scheduler: "local",
		},
		{
			name: "leveldb store",
			mutate: func(c *config.Config) {
				c.StorePath = filepath.Join(t.TempDir(), "pages")
			},
			wantRedis: true,
			scheduler: "local",
		},
		{
			name: "redis store with asynq",
			mutate: func(c *config.Config) {
				c.Store = config.StoreRedis
				c.Scheduler = config.SchedulerAsynq
			},
			wantRedis: true,
			scheduler: "asynq",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.RedisAddr = mr.Addr()
			tt.mutate(&cfg)

			a, err := New(context.Background(), cfg, zerolog.Nop())
			require.NoError(t, err)
			defer func() { require.NoError(t, a.Close(context.Background())) }()

			require.NotNil(t, a.Manager)
			require.NotNil(t, a.Stats)
			require.Equal(t, tt.wantRedis, a.Redis != nil)
			require.Equal(t, cfg.Alive.Std(), a.Manager.TTL())
		})
	}
}

func TestNew_StoresRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	_, ok := a.Store.(*store.Memory)
	require.True(t, ok)
}

func TestNew_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.StorePath = filepath.Join(t.TempDir(), "pages")
	cfg.RedisAddr = addr

	_, err := New(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestClose_ReleasesLevelDB(t *testing.T) {
	cfg := config.Default()
	cfg.StorePath = filepath.Join(t.TempDir(), "pages")
	cfg.RedisAddr = miniredis.RunT(t).Addr()

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))

	// The database lock is released, so it can be opened again.
	b, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Close(context.Background()))
}

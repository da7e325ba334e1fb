package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/pagecache/pkg/cache"
	"github.com/Sternrassler/pagecache/pkg/origin"
	"github.com/Sternrassler/pagecache/pkg/urlnorm"
	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeRefresher records units and returns err.
type fakeRefresher struct {
	mu    sync.Mutex
	units []cache.RefreshUnit
	err   error
	done  chan struct{}
	block chan struct{}
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{done: make(chan struct{}, 16)}
}

func (f *fakeRefresher) Refresh(ctx context.Context, unit cache.RefreshUnit) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	f.units = append(f.units, unit)
	err := f.err
	f.mu.Unlock()
	f.done <- struct{}{}
	return err
}

func (f *fakeRefresher) Units() []cache.RefreshUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cache.RefreshUnit(nil), f.units...)
}

func waitDone(t *testing.T, f *fakeRefresher) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not run")
	}
}

func TestTask_RoundTrip(t *testing.T) {
	unit := cache.RefreshUnit{URL: "https://example.com/p?a=1", ContentType: "json"}

	task, err := NewTask(unit)
	require.NoError(t, err)
	require.Equal(t, TypeRefresh, task.Type())

	got, err := ParseTask(task)
	require.NoError(t, err)
	require.Equal(t, unit, got)
}

func TestParseTask_Invalid(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":  "{",
		"empty url": `{"content_type":"html"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTask(asynq.NewTask(TypeRefresh, []byte(payload)))
			require.Error(t, err)
		})
	}
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{
			name:    "success",
			payload: []byte(`{"url":"http://a.com/","content_type":"html"}`),
		},
		{
			name:      "bad payload",
			payload:   []byte(`nope`),
			wantErr:   true,
			skipRetry: true,
		},
		{
			name:      "malformed url",
			payload:   []byte(`{"url":"xml://host/path"}`),
			err:       urlnorm.ErrMalformedURL,
			wantErr:   true,
			skipRetry: true,
		},
		{
			name:      "origin 404",
			payload:   []byte(`{"url":"http://a.com/"}`),
			err:       &origin.Error{StatusCode: 404, ErrorClass: origin.ErrorClassClient},
			wantErr:   true,
			skipRetry: true,
		},
		{
			name:    "origin 503",
			payload: []byte(`{"url":"http://a.com/"}`),
			err:     &origin.Error{StatusCode: 503, ErrorClass: origin.ErrorClassServer},
			wantErr: true,
		},
		{
			name:    "store failure",
			payload: []byte(`{"url":"http://a.com/"}`),
			err:     errors.New("disk full"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRefresher()
			r.err = tt.err
			h := NewHandler(r, zerolog.Nop())

			err := h.ProcessTask(context.Background(), asynq.NewTask(TypeRefresh, tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessTask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, asynq.SkipRetry) != tt.skipRetry {
				t.Errorf("SkipRetry = %v, want %v (err %v)", errors.Is(err, asynq.SkipRetry), tt.skipRetry, err)
			}
		})
	}
}

func TestAsynq_Schedule(t *testing.T) {
	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer client.Close()

	cfg := DefaultAsynqConfig()
	cfg.Unique = time.Minute
	s := NewAsynq(client, cfg, zerolog.Nop())
	ctx := context.Background()
	unit := cache.RefreshUnit{URL: "http://a.com/p", ContentType: "html"}

	require.NoError(t, s.Schedule(ctx, unit, 30*time.Second))
	require.NoError(t, s.Schedule(ctx, unit, 30*time.Second), "duplicate is not an error")

	scheduled, err := mr.ZMembers("asynq:{pagecache}:scheduled")
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	require.Equal(t, "asynq", s.Name())
}

func TestLocal_RunsAfterDelay(t *testing.T) {
	r := newFakeRefresher()
	l := NewLocal(DefaultLocalConfig(), zerolog.Nop())
	l.Attach(r)
	unit := cache.RefreshUnit{URL: "http://a.com/", ContentType: "html"}

	start := time.Now()
	require.NoError(t, l.Schedule(context.Background(), unit, 50*time.Millisecond))
	waitDone(t, r)

	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, []cache.RefreshUnit{unit}, r.Units())
	require.Zero(t, l.Pending())
	require.NoError(t, l.Close(context.Background()))
}

func TestLocal_DedupesPending(t *testing.T) {
	r := newFakeRefresher()
	l := NewLocal(DefaultLocalConfig(), zerolog.Nop())
	l.Attach(r)
	ctx := context.Background()
	unit := cache.RefreshUnit{URL: "http://a.com/", ContentType: "html"}

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Schedule(ctx, unit, 50*time.Millisecond))
	}
	require.NoError(t, l.Schedule(ctx, cache.RefreshUnit{URL: "http://a.com/", ContentType: "json"}, 50*time.Millisecond))
	require.Equal(t, 2, l.Pending())

	waitDone(t, r)
	waitDone(t, r)
	require.NoError(t, l.Close(ctx))
	require.Len(t, r.Units(), 2)
}

func TestLocal_ConcurrencyLimit(t *testing.T) {
	r := newFakeRefresher()
	r.block = make(chan struct{})
	l := NewLocal(LocalConfig{Concurrency: 1, Timeout: time.Second}, zerolog.Nop())
	l.Attach(r)
	ctx := context.Background()

	require.NoError(t, l.Schedule(ctx, cache.RefreshUnit{URL: "http://a.com/1"}, 0))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Schedule(ctx, cache.RefreshUnit{URL: "http://a.com/2"}, 0))
	time.Sleep(50 * time.Millisecond)

	close(r.block)
	waitDone(t, r)
	require.NoError(t, l.Close(ctx))
	require.Equal(t, []cache.RefreshUnit{{URL: "http://a.com/1"}}, r.Units())
}

func TestLocal_Close(t *testing.T) {
	r := newFakeRefresher()
	l := NewLocal(DefaultLocalConfig(), zerolog.Nop())
	l.Attach(r)
	ctx := context.Background()

	require.NoError(t, l.Schedule(ctx, cache.RefreshUnit{URL: "http://a.com/"}, time.Hour))
	require.NoError(t, l.Close(ctx))
	require.Zero(t, l.Pending())
	require.Empty(t, r.Units())

	require.ErrorIs(t, l.Schedule(ctx, cache.RefreshUnit{URL: "http://a.com/"}, 0), ErrClosed)
}

var (
	_ cache.Scheduler = (*Local)(nil)
	_ cache.Scheduler = (*Asynq)(nil)
)

package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// lines decodes JSON log output, one event per line.
func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("log line %q is not JSON: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string
	}{
		{level: "debug", want: []string{"debug", "info", "warn"}},
		{level: "", want: []string{"info", "warn"}},
		{level: "WARNING", want: []string{"warn"}},
		{level: " error ", want: nil},
		{level: "verbose", want: []string{"info", "warn"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			logger.Debug().Msg("debug")
			logger.Info().Msg("info")
			logger.Warn().Msg("warn")

			var got []string
			for _, ev := range lines(t, buf) {
				got = append(got, ev["message"].(string))
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("level %q wrote %v, want %v", tt.level, got, tt.want)
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Str(FieldState, "stale").Msg("Page cache lookup")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Fatalf("pretty output is JSON: %q", out)
	}
	for _, want := range []string{"INF", "Page cache lookup", "state=", "stale"} {
		if !strings.Contains(out, want) {
			t.Errorf("pretty output %q missing %q", out, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("page-cache")
	logger.Info().
		Str(FieldShard, "a").
		Str(FieldDay, "20240601").
		Msg("Page cache cleared")

	evs := lines(t, buf)
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	for field, want := range map[string]string{
		"component": "page-cache",
		"shard":     "a",
		"day":       "20240601",
		"level":     "info",
	} {
		if evs[0][field] != want {
			t.Errorf("%s = %v, want %q", field, evs[0][field], want)
		}
	}
	if _, ok := evs[0]["time"]; !ok {
		t.Error("event has no timestamp")
	}
}

func serve(t *testing.T, buf *bytes.Buffer, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	logger := Setup(Config{Level: LevelInfo, Output: buf})

	var handler http.Handler = h
	chain := HTTPMiddleware(logger)
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHTTPMiddleware_AccessLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "ok", status: http.StatusOK, wantLevel: "info"},
		{name: "bad gateway", status: http.StatusBadGateway, wantLevel: "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			rec := serve(t, buf, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}, "/about?page=2")

			evs := lines(t, buf)
			if len(evs) != 1 {
				t.Fatalf("got %d events, want 1", len(evs))
			}
			ev := evs[0]
			if ev["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", ev["level"], tt.wantLevel)
			}
			if ev["request_uri"] != "/about?page=2" {
				t.Errorf("request_uri = %v", ev["request_uri"])
			}
			if ev["status_code"] != float64(tt.status) {
				t.Errorf("status_code = %v, want %d", ev["status_code"], tt.status)
			}
			if ev[FieldRequestID] == nil || ev[FieldRequestID] != rec.Header().Get("X-Request-Id") {
				t.Errorf("request_id = %v, header = %q", ev[FieldRequestID], rec.Header().Get("X-Request-Id"))
			}
			if _, ok := ev[FieldState]; ok {
				t.Error("unannotated request logged a cache state")
			}
		})
	}
}

func TestAnnotatePage(t *testing.T) {
	buf := &bytes.Buffer{}
	serve(t, buf, func(w http.ResponseWriter, r *http.Request) {
		AnnotatePage(r, Page{
			URL:         "http://example.com/about",
			Key:         "4/0/9/7b9f0a7c1c5e9bd1e52d4e3e8a4c2409.html",
			ContentType: "html",
			State:       "hit",
		})
		w.WriteHeader(http.StatusOK)
	}, "/about?utm=x")

	evs := lines(t, buf)
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	for field, want := range map[string]string{
		FieldURL:         "http://example.com/about",
		FieldKey:         "4/0/9/7b9f0a7c1c5e9bd1e52d4e3e8a4c2409.html",
		FieldContentType: "html",
		FieldState:       "hit",
		"request_uri":    "/about?utm=x",
	} {
		if evs[0][field] != want {
			t.Errorf("%s = %v, want %q", field, evs[0][field], want)
		}
	}
}

func TestAnnotatePage_NoRequestLogger(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	AnnotatePage(r, Page{URL: "http://example.com/", State: "miss"})
}

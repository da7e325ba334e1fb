package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/pagecache/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/maruel/subcommands"
)

type cliEnv struct {
	t      *testing.T
	origin *testutil.MockOrigin
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)

	t.Setenv("PAGE_CACHE_CONFIG", "")
	t.Setenv("PAGE_CACHE_STORE", "leveldb")
	t.Setenv("PAGE_CACHE_STORE_PATH", filepath.Join(t.TempDir(), "pages"))
	t.Setenv("PAGE_CACHE_SCHEDULER", "local")
	t.Setenv("REDIS_ADDR", mr.Addr())

	return &cliEnv{t: t, origin: origin}
}

// run executes one command and returns its exit code, stdout and stderr.
func (e *cliEnv) run(args ...string) (int, string, string) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	code := subcommands.Run(newApplication(&out, &errOut), args)
	return code, out.String(), errOut.String()
}

func TestCLI_PageLifecycle(t *testing.T) {
	env := setupCLI(t)
	page := env.origin.URL() + "/about"

	code, out, _ := env.run("info", page)
	if code != 0 || strings.TrimSpace(out) != "No Cache" {
		t.Fatalf("info on empty cache: code=%d out=%q", code, out)
	}

	code, _, errOut := env.run("refresh", page)
	if code != 1 || !strings.Contains(errOut, "cache entry not found") {
		t.Fatalf("refresh without -create: code=%d err=%q", code, errOut)
	}
	if env.origin.RequestCount() != 0 {
		t.Errorf("Expected no origin request, got %d", env.origin.RequestCount())
	}

	code, out, errOut = env.run("refresh", "-create", page)
	if code != 0 || strings.TrimSpace(out) != "page cache has been created" {
		t.Fatalf("refresh -create: code=%d out=%q err=%q", code, out, errOut)
	}
	if got := env.origin.LastRawQuery(); got != "nocache=1" {
		t.Errorf("Expected origin query nocache=1, got %q", got)
	}

	code, out, _ = env.run("info", page)
	if code != 0 || !strings.Contains(out, "Page Cache : ") || !strings.Contains(out, ".html") || !strings.Contains(out, "Update Time : ") {
		t.Fatalf("info on cached page: code=%d out=%q", code, out)
	}

	code, out, _ = env.run("info", "-type", "json", page)
	if code != 0 || strings.TrimSpace(out) != "No Cache" {
		t.Errorf("info on json variant: code=%d out=%q", code, out)
	}

	code, out, _ = env.run("refresh", page)
	if code != 0 || strings.TrimSpace(out) != "page cache has been updated" {
		t.Fatalf("refresh existing: code=%d out=%q", code, out)
	}

	code, out, _ = env.run("clear")
	if code != 0 || strings.TrimSpace(out) != "page cache has been cleared" {
		t.Fatalf("clear: code=%d out=%q", code, out)
	}

	code, out, _ = env.run("info", page)
	if code != 0 || strings.TrimSpace(out) != "No Cache" {
		t.Errorf("info after clear: code=%d out=%q", code, out)
	}
}

func TestCLI_RefreshOriginFailure(t *testing.T) {
	env := setupCLI(t)
	env.origin.SetResponse("/gone", testutil.NewNotFoundResponse())

	code, out, errOut := env.run("refresh", "-create", env.origin.URL()+"/gone")
	if code != 1 {
		t.Fatalf("Expected exit code 1, got %d (out=%q)", code, out)
	}
	if !strings.Contains(errOut, "origin fetch") {
		t.Errorf("Expected origin failure message, got %q", errOut)
	}
}

func TestCLI_MalformedURL(t *testing.T) {
	env := setupCLI(t)

	code, _, errOut := env.run("info", "xml://host/path")
	if code != 1 || !strings.Contains(errOut, "malformed url") {
		t.Errorf("info malformed: code=%d err=%q", code, errOut)
	}
}

func TestCLI_Stat(t *testing.T) {
	env := setupCLI(t)

	code, out, _ := env.run("info", "stat")
	if code != 0 {
		t.Fatalf("info stat: code=%d", code)
	}
	for _, want := range []string{"total: 0", "hit: 0", "refresh: 0", "hit rate: 0%", "refresh rate: 0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output %q", want, out)
		}
	}

	code, _, _ = env.run("info", "stat", "-date", "20240101")
	if code != 0 {
		t.Errorf("info stat -date: code=%d", code)
	}

	code, _, errOut := env.run("info", "stat", "-date", "2024-01-01")
	if code != 1 || !strings.Contains(errOut, "YYYYMMDD") {
		t.Errorf("info stat bad date: code=%d err=%q", code, errOut)
	}

	code, out, _ = env.run("stats-reset")
	if code != 0 || !strings.Contains(out, "reset") {
		t.Errorf("stats-reset: code=%d out=%q", code, out)
	}
}

func TestCLI_Warm(t *testing.T) {
	env := setupCLI(t)
	env.origin.SetResponse("/broken", testutil.NewServerErrorResponse())

	list := filepath.Join(t.TempDir(), "urls.txt")
	content := strings.Join([]string{
		"# pages",
		env.origin.URL() + "/a",
		env.origin.URL() + "/b",
		"",
	}, "\n")
	if err := os.WriteFile(list, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := env.run("warm", "-file", list)
	if code != 0 || !strings.Contains(out, "warmed 2/2 pages") {
		t.Fatalf("warm: code=%d out=%q err=%q", code, out, errOut)
	}

	code, out, _ = env.run("info", env.origin.URL()+"/b")
	if code != 0 || !strings.Contains(out, "Page Cache : ") {
		t.Errorf("info after warm: code=%d out=%q", code, out)
	}

	if err := os.WriteFile(list, []byte(env.origin.URL()+"/broken\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	code, out, _ = env.run("warm", "-file", list)
	if code != 1 || !strings.Contains(out, "failed: ") {
		t.Errorf("warm with failure: code=%d out=%q", code, out)
	}
}

func TestCLI_Usage(t *testing.T) {
	env := setupCLI(t)

	if code, _, _ := env.run("warm"); code != 1 {
		t.Errorf("warm without -file: code=%d", code)
	}
	if code, _, _ := env.run("clear", "extra"); code != 1 {
		t.Errorf("clear with args: code=%d", code)
	}
	if code, _, _ := env.run("refresh"); code != 1 {
		t.Errorf("refresh without url: code=%d", code)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/Sternrassler/pagecache/pkg/warmup"
	"github.com/maruel/subcommands"
)

var cmdWarm = &subcommands.Command{
	UsageLine: "warm [flags] -file <urls.txt>",
	ShortDesc: "cache a list of pages",
	LongDesc: `Fetch every URL of a file, one per line, and cache it.

Use "-file -" to read the list from stdin. Lines starting with '#' are skipped.`,
	CommandRun: func() subcommands.CommandRun {
		c := &warmRun{}
		c.Init(true)
		c.Flags.StringVar(&c.file, "file", "", "URL list, one per line; - for stdin")
		c.Flags.IntVar(&c.concurrency, "concurrency", warmup.DefaultConfig().MaxConcurrency, "parallel origin fetches")
		return c
	},
}

type warmRun struct {
	commonFlags
	file        string
	concurrency int
}

func (c *warmRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if c.file == "" {
		return fail(a, fmt.Errorf("-file is required"))
	}
	if len(args) != 0 {
		return fail(a, fmt.Errorf("warm takes no arguments"))
	}

	urls, err := c.readURLs()
	if err != nil {
		return fail(a, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pc, err := c.open(ctx, a)
	if err != nil {
		return fail(a, err)
	}
	defer pc.Close(context.Background())

	cfg := warmup.DefaultConfig()
	cfg.MaxConcurrency = c.concurrency
	cfg.ContentType = c.contentType
	cfg.Timeout = pc.Config.FetchTimeout.Std()

	report, err := warmup.New(pc.Manager, cfg, pc.Logger()).Warm(ctx, urls)

	failed := make([]string, 0, report.Failed())
	for url := range report.Failures {
		failed = append(failed, url)
	}
	sort.Strings(failed)
	for _, url := range failed {
		fmt.Fprintf(a.GetOut(), "failed: %s: %v\n", url, report.Failures[url])
	}
	fmt.Fprintf(a.GetOut(), "warmed %d/%d pages in %s\n", report.Succeeded, report.Total, report.Duration.Round(time.Millisecond))

	if err != nil {
		return fail(a, err)
	}
	if report.Failed() > 0 {
		return 1
	}
	return 0
}

func (c *warmRun) readURLs() ([]string, error) {
	var r io.Reader = os.Stdin
	if c.file != "-" {
		f, err := os.Open(c.file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return warmup.ReadURLs(r)
}

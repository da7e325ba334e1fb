package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/pagecache/pkg/stats"
	"github.com/maruel/subcommands"
)

// timeLayout formats update times in the local zone.
const timeLayout = "2006-01-02 15:04:05"

var cmdInfo = &subcommands.Command{
	UsageLine: "info [flags] <url> | info stat [-date YYYYMMDD]",
	ShortDesc: "show a cached page or the daily stats",
	LongDesc: `Show where a page is cached and when it was last written.

"info stat" prints the request, hit and refresh counts of a day (default
today) with the hit and refresh rates.`,
	CommandRun: func() subcommands.CommandRun {
		c := &infoRun{}
		c.Init(true)
		c.Flags.StringVar(&c.date, "date", "", "stats day as YYYYMMDD (default: today)")
		return c
	},
}

type infoRun struct {
	commonFlags
	date string
}

func (c *infoRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) == 0 {
		return fail(a, fmt.Errorf("missing url; use \"info <url>\" or \"info stat\""))
	}

	// Flags may follow the "stat" keyword.
	if args[0] == "stat" {
		if err := c.Flags.Parse(args[1:]); err != nil {
			return fail(a, err)
		}
		if c.Flags.NArg() != 0 {
			return fail(a, fmt.Errorf("unexpected arguments %q", c.Flags.Args()))
		}
		return c.stat(a)
	}
	if len(args) != 1 {
		return fail(a, fmt.Errorf("info takes exactly one url"))
	}
	return c.page(a, args[0])
}

func (c *infoRun) page(a subcommands.Application, rawURL string) int {
	ctx := context.Background()
	pc, err := c.open(ctx, a)
	if err != nil {
		return fail(a, err)
	}
	defer pc.Close(ctx)

	u, err := pc.Normalizer.Parse(rawURL)
	if err != nil {
		return fail(a, err)
	}

	result := pc.Manager.Read(ctx, u, c.contentType)
	if !result.Found() {
		fmt.Fprintln(a.GetOut(), "No Cache")
		return 0
	}

	fmt.Fprintf(a.GetOut(), "Page Cache : %s\n", result.Key)
	if !result.UpdatedAt.IsZero() {
		fmt.Fprintf(a.GetOut(), "Update Time : %s\n", result.UpdatedAt.Local().Format(timeLayout))
	}
	return 0
}

func (c *infoRun) stat(a subcommands.Application) int {
	ctx := context.Background()
	pc, err := c.open(ctx, a)
	if err != nil {
		return fail(a, err)
	}
	defer pc.Close(ctx)

	day := c.date
	if day == "" {
		day = stats.Day(time.Now())
	}

	s, err := pc.Stats.StatsFor(ctx, day)
	if err != nil {
		return fail(a, err)
	}

	out := a.GetOut()
	fmt.Fprintf(out, "total: %d\n", s.Total)
	fmt.Fprintf(out, "hit: %d\n", s.Hits)
	fmt.Fprintf(out, "refresh: %d\n", s.Refreshes)
	fmt.Fprintf(out, "hit rate: %s\n", s.HitRate)
	fmt.Fprintf(out, "refresh rate: %s\n", s.RefreshRate)
	return 0
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/maruel/subcommands"
)

var errEntryNotFound = errors.New("cache entry not found")

var cmdRefresh = &subcommands.Command{
	UsageLine: "refresh [flags] <url>",
	ShortDesc: "re-fetch a cached page from the origin",
	LongDesc: `Re-fetch a cached page from the origin and overwrite it.

A page that is not cached yet is only fetched with -create.`,
	CommandRun: func() subcommands.CommandRun {
		c := &refreshRun{}
		c.Init(true)
		c.Flags.BoolVar(&c.create, "create", false, "cache the page when it is not cached yet")
		return c
	},
}

type refreshRun struct {
	commonFlags
	create bool
}

func (c *refreshRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 1 {
		return fail(a, fmt.Errorf("refresh takes exactly one url"))
	}

	ctx := context.Background()
	pc, err := c.open(ctx, a)
	if err != nil {
		return fail(a, err)
	}
	defer pc.Close(ctx)

	u, err := pc.Normalizer.Parse(args[0])
	if err != nil {
		return fail(a, err)
	}

	existing := pc.Manager.Read(ctx, u, c.contentType)
	if !existing.Found() && !c.create {
		return fail(a, fmt.Errorf("%w: %s", errEntryNotFound, u))
	}

	if !pc.Manager.Create(ctx, u, c.contentType) {
		return fail(a, fmt.Errorf("origin fetch of %s failed, see log", pc.Manager.FetchURL(u)))
	}

	if existing.Found() {
		fmt.Fprintln(a.GetOut(), "page cache has been updated")
	} else {
		fmt.Fprintln(a.GetOut(), "page cache has been created")
	}
	return 0
}

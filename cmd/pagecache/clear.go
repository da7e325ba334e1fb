package main

import (
	"context"
	"fmt"

	"github.com/maruel/subcommands"
)

var cmdClear = &subcommands.Command{
	UsageLine: "clear [flags]",
	ShortDesc: "remove every cached page",
	LongDesc: `Remove every cached page, one top-level shard at a time.

The clear stops at the first shard that can not be removed; shards removed
before it stay removed.`,
	CommandRun: func() subcommands.CommandRun {
		c := &clearRun{}
		c.Init(false)
		return c
	},
}

type clearRun struct {
	commonFlags
}

func (c *clearRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 0 {
		return fail(a, fmt.Errorf("clear takes no arguments"))
	}

	ctx := context.Background()
	pc, err := c.open(ctx, a)
	if err != nil {
		return fail(a, err)
	}
	defer pc.Close(ctx)

	if err := pc.Manager.ClearAll(ctx); err != nil {
		return fail(a, err)
	}
	fmt.Fprintln(a.GetOut(), "page cache has been cleared")
	return 0
}

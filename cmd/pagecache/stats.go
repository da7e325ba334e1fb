package main

import (
	"context"
	"fmt"

	"github.com/maruel/subcommands"
)

var cmdStatsReset = &subcommands.Command{
	UsageLine: "stats-reset [flags]",
	ShortDesc: "delete today's stats",
	CommandRun: func() subcommands.CommandRun {
		c := &statsResetRun{}
		c.Init(false)
		return c
	},
}

type statsResetRun struct {
	commonFlags
}

func (c *statsResetRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 0 {
		return fail(a, fmt.Errorf("stats-reset takes no arguments"))
	}

	ctx := context.Background()
	pc, err := c.open(ctx, a)
	if err != nil {
		return fail(a, err)
	}
	defer pc.Close(ctx)

	if err := pc.Stats.Reset(ctx); err != nil {
		return fail(a, err)
	}
	fmt.Fprintln(a.GetOut(), "page cache stats have been reset")
	return 0
}

// Command pagecache inspects and maintains the page cache from the shell.
package main

import (
	"io"
	"os"

	"github.com/maruel/subcommands"
)

// application routes command output to configurable writers.
type application struct {
	subcommands.DefaultApplication
	out io.Writer
	err io.Writer
}

func (a *application) GetOut() io.Writer { return a.out }
func (a *application) GetErr() io.Writer { return a.err }

func newApplication(out, errOut io.Writer) *application {
	return &application{
		DefaultApplication: subcommands.DefaultApplication{
			Name:  "pagecache",
			Title: "Inspect, refresh and clear the page cache.",
			// Keep in alphabetical order of their name.
			Commands: []*subcommands.Command{
				cmdClear,
				subcommands.CmdHelp,
				cmdInfo,
				cmdRefresh,
				cmdStatsReset,
				cmdWarm,
			},
		},
		out: out,
		err: errOut,
	}
}

func main() {
	os.Exit(subcommands.Run(newApplication(os.Stdout, os.Stderr), nil))
}

package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/pagecache/internal/app"
	"github.com/Sternrassler/pagecache/internal/config"
	"github.com/Sternrassler/pagecache/pkg/cache"
	"github.com/Sternrassler/pagecache/pkg/logging"
	"github.com/maruel/subcommands"
)

// commonFlags are shared by every command that opens the cache.
type commonFlags struct {
	subcommands.CommandRunBase
	configPath  string
	contentType string
	verbose     bool
}

func (c *commonFlags) Init(withType bool) {
	c.Flags.StringVar(&c.configPath, "config", "", "YAML config file (default: $"+config.FileEnv+")")
	c.Flags.BoolVar(&c.verbose, "v", false, "log at debug level")
	if withType {
		c.Flags.StringVar(&c.contentType, "type", cache.DefaultContentType, "cached variant: html or json")
	}
}

// open loads the configuration and wires the cache. Logs go to the
// application's error stream.
func (c *commonFlags) open(ctx context.Context, a subcommands.Application) (*app.App, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	level := logging.LogLevel(cfg.LogLevel)
	if c.verbose {
		level = logging.LevelDebug
	} else if level == logging.LevelInfo {
		level = logging.LevelWarn
	}
	logger := logging.Setup(logging.Config{
		Level:  level,
		Pretty: true,
		Output: a.GetErr(),
	})

	return app.New(ctx, cfg, logger)
}

// fail prints err and returns the failure exit code.
func fail(a subcommands.Application, err error) int {
	fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), err)
	return 1
}

/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/koala/engine"
	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/spaghettifunk/koala/testbed"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.StringP("config", "c", config.DefaultPath, "path to the TOML configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level (debug, info, warn, error, fatal)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	tb, err := testbed.NewTestGame(cfg)
	if err != nil {
		return err
	}

	e, err := engine.New(tb.Game)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		e.PinLogLevel(*logLevel)
	}

	// Reloads are optional, the engine runs fine without them.
	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		core.LogWarn("config hot reload disabled: %s", err)
	} else {
		defer watcher.Close()
		e.WatchConfig(watcher)
	}

	if err := e.Initialize(); err != nil {
		if serr := e.Shutdown(); serr != nil {
			core.LogError("shutdown after failed initialize: %s", serr)
		}
		return err
	}

	// capture sigterm and other system calls, the loop stops on the next tick
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("engine shutdown: %s", err)
	}
	return runErr
}

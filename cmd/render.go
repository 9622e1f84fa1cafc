// Package cmd implements the command line actions.
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/tigrazone/gkNextRenderer/engine"
	"github.com/tigrazone/gkNextRenderer/engine/core"
)

// Render opens the window and renders the selected scene until the window is
// closed, escape is pressed or the process is signalled.
func Render(ctx *cli.Context) error {
	opts, err := optionsFromContext(ctx)
	if err != nil {
		return err
	}
	setupLogging(opts.LogLevel)

	scratch, err := scratchPolicy(ctx.String("scratch"))
	if err != nil {
		return err
	}

	e, err := engine.New(&engine.ApplicationConfig{
		Name:         ctx.App.Name,
		Options:      opts,
		WatchShaders: !ctx.Bool("no-watch"),
		Scratch:      scratch,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Shutdown(); err != nil {
			core.LogError("shutdown: %s", err)
		}
	}()

	if err := e.Initialize(); err != nil {
		return err
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	go func() {
		if _, ok := <-sigCh; ok {
			core.LogInfo("signal received, shutting down")
			e.Stop()
		}
	}()

	return e.Run()
}

package cmd

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/tigrazone/gkNextRenderer/engine/config"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/accel"
)

var defaults = config.Default()

// Flags returns the global options. Values given on the command line override
// the ones read from --config.
func Flags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "read options from a TOML file",
		},
		cli.IntFlag{
			Name:  "renderer",
			Value: int(defaults.RendererType),
			Usage: "renderer type (0 = ray traced, 1 = modern deferred, 2 = legacy deferred, 3 = ray query, 4 = hybrid deferred)",
		},
		cli.IntFlag{
			Name:  "samples",
			Value: int(defaults.Samples),
			Usage: "samples per pixel per frame",
		},
		cli.IntFlag{
			Name:  "bounces",
			Value: int(defaults.Bounces),
			Usage: "maximum number of bounces per ray",
		},
		cli.IntFlag{
			Name:  "max-samples",
			Value: int(defaults.MaxSamples),
			Usage: "maximum number of accumulated samples",
		},
		cli.IntFlag{
			Name:  "temporal",
			Value: int(defaults.Temporal),
			Usage: "number of temporal frames",
		},
		cli.IntFlag{
			Name:  "scene",
			Value: int(defaults.SceneIndex),
			Usage: "index of the built-in scene to render",
		},
		cli.IntSliceFlag{
			Name:  "visible-devices",
			Value: &cli.IntSlice{},
			Usage: "only consider the devices with these ids",
		},
		cli.IntFlag{
			Name:  "width",
			Value: int(defaults.Width),
			Usage: "framebuffer width",
		},
		cli.IntFlag{
			Name:  "height",
			Value: int(defaults.Height),
			Usage: "framebuffer height",
		},
		cli.IntFlag{
			Name:  "present-mode",
			Value: int(defaults.PresentMode),
			Usage: "present mode (0 = immediate, 1 = mailbox, 2 = fifo, 3 = fifo relaxed)",
		},
		cli.BoolFlag{
			Name:  "fullscreen",
			Usage: "open a fullscreen window",
		},
		cli.BoolFlag{
			Name:  "benchmark",
			Usage: "run with fixed sampling settings and immediate presentation",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: defaults.LogLevel,
			Usage: "log level (debug, info, warn, error)",
		},
		cli.StringFlag{
			Name:  "shader-dir",
			Value: defaults.ShaderDir,
			Usage: "directory holding the compiled SPIR-V shaders",
		},
		cli.BoolFlag{
			Name:  "validation",
			Usage: "enable the Vulkan validation layer",
		},
		cli.BoolFlag{
			Name:  "no-watch",
			Usage: "do not reload shaders when they change on disk",
		},
		cli.StringFlag{
			Name:  "scratch",
			Value: accel.ScratchSum.String(),
			Usage: "acceleration structure scratch sizing (sum or max)",
		},
	}
}

// optionsFromContext loads --config when given and applies the flags that
// were set explicitly.
func optionsFromContext(ctx *cli.Context) (config.Options, error) {
	opts := config.Default()
	if path := ctx.String("config"); path != "" {
		var err error
		if opts, err = config.Load(path); err != nil {
			return opts, err
		}
	}

	uints := map[string]*uint32{
		"renderer":     &opts.RendererType,
		"samples":      &opts.Samples,
		"bounces":      &opts.Bounces,
		"max-samples":  &opts.MaxSamples,
		"temporal":     &opts.Temporal,
		"scene":        &opts.SceneIndex,
		"width":        &opts.Width,
		"height":       &opts.Height,
		"present-mode": &opts.PresentMode,
	}
	for name, field := range uints {
		if !ctx.IsSet(name) {
			continue
		}
		v := ctx.Int(name)
		if v < 0 {
			return opts, fmt.Errorf("--%s must not be negative; got %d", name, v)
		}
		*field = uint32(v)
	}
	if ctx.IsSet("visible-devices") {
		opts.VisibleDevices = opts.VisibleDevices[:0]
		for _, id := range ctx.IntSlice("visible-devices") {
			opts.VisibleDevices = append(opts.VisibleDevices, uint32(id))
		}
	}
	if ctx.IsSet("fullscreen") {
		opts.Fullscreen = ctx.Bool("fullscreen")
	}
	if ctx.IsSet("benchmark") {
		opts.Benchmark = ctx.Bool("benchmark")
	}
	if ctx.IsSet("validation") {
		opts.Validation = ctx.Bool("validation")
	}
	if ctx.IsSet("log-level") {
		opts.LogLevel = ctx.String("log-level")
	}
	if ctx.IsSet("shader-dir") {
		opts.ShaderDir = ctx.String("shader-dir")
	}
	return opts, nil
}

func scratchPolicy(name string) (accel.ScratchPolicy, error) {
	switch name {
	case accel.ScratchSum.String():
		return accel.ScratchSum, nil
	case accel.ScratchMax.String():
		return accel.ScratchMax, nil
	}
	return accel.ScratchSum, fmt.Errorf("unknown scratch policy %q", name)
}

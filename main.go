package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/tigrazone/gkNextRenderer/cmd"
	"github.com/tigrazone/gkNextRenderer/engine/core"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "gkNextRenderer"
	app.Usage = "real-time hybrid ray tracing renderer"
	app.Version = "0.1.0"
	app.Flags = cmd.Flags()
	app.Action = cmd.Render
	app.Commands = []cli.Command{
		{
			Name:  "list-devices",
			Usage: "list the Vulkan devices that can present to a window",
			Description: `
Enumerate the physical devices with their queue and ray tracing support. The
device the renderer would pick with the current options is marked with '*'.`,
			Action: cmd.ListDevices,
		},
		{
			Name:   "list-scenes",
			Usage:  "list the built-in scenes",
			Action: cmd.ListScenes,
		},
	}

	if err := app.Run(os.Args); err != nil {
		core.LogError("%s", err)
		os.Exit(1)
	}
}

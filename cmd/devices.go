package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/tigrazone/gkNextRenderer/engine/config"
	"github.com/tigrazone/gkNextRenderer/engine/platform"
	"github.com/tigrazone/gkNextRenderer/engine/renderer"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/gpu"
	"github.com/tigrazone/gkNextRenderer/engine/renderer/vulkan"
	"github.com/tigrazone/gkNextRenderer/engine/scene"
)

// ListDevices prints the physical devices that can present to a window and
// marks the one the renderer would select.
func ListDevices(ctx *cli.Context) error {
	opts, err := optionsFromContext(ctx.Parent())
	if err != nil {
		return err
	}
	setupLogging(opts.LogLevel)

	p := platform.New()
	if err := p.Startup(platform.WindowConfig{Title: ctx.App.Name, Width: 64, Height: 64, Hidden: true}, nil); err != nil {
		return err
	}
	defer p.Shutdown()

	instance, err := vulkan.NewInstance(p.Window, vulkan.InstanceOptions{
		ApplicationName: ctx.App.Name,
		Validation:      opts.Validation,
	})
	if err != nil {
		return err
	}
	defer instance.Destroy()

	devices, err := instance.PhysicalDevices()
	if err != nil {
		return err
	}
	writeDeviceTable(os.Stdout, devices, opts)
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func writeDeviceTable(w io.Writer, devices []gpu.PhysicalDeviceInfo, opts config.Options) {
	selected := -1
	if info, err := renderer.SelectDevice(devices, opts); err == nil {
		selected = info.Index
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"", "Index", "ID", "Name", "Type", "Graphics", "Present", "Compute", "Ray tracing", "Visible"})
	for _, d := range devices {
		mark := ""
		if d.Index == selected {
			mark = "*"
		}
		table.Append([]string{
			mark,
			fmt.Sprintf("%d", d.Index),
			fmt.Sprintf("%#04x", d.ID),
			d.Name,
			d.Type.String(),
			yesNo(d.Graphics),
			yesNo(d.Present),
			yesNo(d.Compute),
			yesNo(d.RayTracing),
			yesNo(opts.DeviceVisible(d.ID)),
		})
	}
	table.Render()
}

// ListScenes prints the built-in scenes with their indices.
func ListScenes(ctx *cli.Context) error {
	writeSceneTable(os.Stdout)
	return nil
}

func writeSceneTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Index", "Name"})
	for i, name := range scene.Names() {
		table.Append([]string{fmt.Sprintf("%d", i), name})
	}
	table.Render()
}

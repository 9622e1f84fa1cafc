package cmd

import (
	"github.com/tigrazone/gkNextRenderer/engine/core"
)

func setupLogging(level string) {
	if !core.SetLogLevel(level) {
		core.LogWarn("unknown log level %q; keeping debug", level)
	}
}

package core

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// logger is shared by every package; the level starts at debug until the
// command line says otherwise.
var logger = sync.OnceValue(func() *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		CallerOffset:    1,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "gkNextRenderer 🔦 ",
	})
	l.SetLevel(log.DebugLevel)
	return l
})

// SetLogLevel changes the minimum level of the shared logger. Unknown names
// leave the level untouched and return false.
func SetLogLevel(name string) bool {
	level, err := log.ParseLevel(strings.ToLower(name))
	if err != nil {
		return false
	}
	logger().SetLevel(level)
	return true
}

func LogDebug(msg string, args ...interface{}) {
	logger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	logger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	logger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	logger().Errorf(msg, args...)
}

// LogFatal logs and exits the process.
func LogFatal(msg string, args ...interface{}) {
	logger().Fatalf(msg, args...)
}

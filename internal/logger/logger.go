package logger

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

var root = hclog.New(&hclog.LoggerOptions{
	Name:   "oater",
	Level:  hclog.Info,
	Output: os.Stderr,
})

// SetLevel adjusts the process-wide log level ("debug", "info", "warn", "error").
func SetLevel(level string) {
	root.SetLevel(hclog.LevelFromString(level))
}

// Named returns a child logger for a subsystem, e.g. "catalog" or "tmdb".
func Named(name string) hclog.Logger {
	return root.Named(name)
}

// Default returns the root logger.
func Default() hclog.Logger {
	return root
}

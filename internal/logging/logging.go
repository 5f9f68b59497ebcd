// Package logging configures the zerolog logger used by devlaunch.
//
// Log output always goes to stderr: stdout and stdin belong to the child
// process while a launch is running.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "DEVLAUNCH_LOG_LEVEL"
	EnvLogNoColor = "DEVLAUNCH_LOG_NOCOLOR"
)

// Options selects the logger shape.
type Options struct {
	// Verbose lowers the level to debug.
	Verbose bool

	// JSON switches from the console writer to JSON lines.
	JSON bool

	// NoColor disables ANSI colors in console output.
	NoColor bool

	// Out defaults to os.Stderr.
	Out io.Writer
}

// New builds a logger from opts, then applies DEVLAUNCH_LOG_* overrides.
func New(opts Options) zerolog.Logger {
	level := zerolog.WarnLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}
	noColor := opts.NoColor
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		noColor = v
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.TimeOnly,
			NoColor:    noColor,
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "devlaunch").Logger()
}

// Nop returns a disabled logger for tests and library callers.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.WarnLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.WarnLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Package logger provides the shared logger for the passes: a zerolog
// console logger that callers can replace or disable. The ZEROELIM_LOG
// environment variable picks the level ("debug", "trace", "disabled",
// ...); ZEROELIM_TRACE=1 is a shorthand for trace, handy when chasing
// why a domain refused to shrink.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/xyproto/env/v2"
)

var logger zerolog.Logger

func init() {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	logger = zerolog.New(w).With().Timestamp().Logger().Level(levelFromEnv())
}

func levelFromEnv() zerolog.Level {
	if env.Bool("ZEROELIM_TRACE") {
		return zerolog.TraceLevel
	}
	lvl, err := zerolog.ParseLevel(env.Str("ZEROELIM_LOG", "info"))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns the shared logger.
func Logger() zerolog.Logger {
	return logger
}

// Set replaces the shared logger.
func Set(l zerolog.Logger) {
	logger = l
}

// Disable turns logging off.
func Disable() {
	logger = logger.Level(zerolog.Disabled)
}

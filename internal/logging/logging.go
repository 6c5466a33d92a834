// Package logging configures the process-wide logger. Level and prefix come
// from environment variables so analysis runs can be made chatty without
// flag plumbing.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Setup configures the default logger used across the analysis packages.
// DSDELINK_LOG_LEVEL selects debug, info, warn or error (default info).
func Setup() {
	SetupWithWriter(os.Stderr)
}

// SetupWithWriter configures the default logger to write to w.
func SetupWithWriter(w io.Writer) {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "dsdelink",
	})
	logger.SetLevel(levelFromEnv())
	log.SetDefault(logger)
}

func levelFromEnv() log.Level {
	switch os.Getenv("DSDELINK_LOG_LEVEL") {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	}
	return log.InfoLevel
}

// IsDebug reports whether debug logging is enabled.
func IsDebug() bool {
	return os.Getenv("DSDELINK_LOG_LEVEL") == "debug"
}

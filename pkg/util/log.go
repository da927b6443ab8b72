package util

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	loggerMu sync.Mutex
	logger   *log.Logger
	verbose  bool
)

func init() {
	verbose = os.Getenv("DEV_VERBOSE") == "true"
	logger = newLogger(os.Stderr)
}

func newLogger(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          "dev",
		ReportTimestamp: false,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
	return l
}

// Logger returns the shared structured logger
func Logger() *log.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return logger
}

// SetOutput redirects log output, mainly for tests
func SetOutput(w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = newLogger(w)
}

// IsVerbose returns true if verbose logging is enabled
func IsVerbose() bool {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return verbose
}

// SetVerbose toggles verbose logging
func SetVerbose(enabled bool) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	verbose = enabled
	if enabled {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

// LogVerbose prints verbose log messages
func LogVerbose(format string, args ...interface{}) {
	Logger().Debugf(format, args...)
}

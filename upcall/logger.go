package upcall

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the upcall package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the upcall package's logger.
// This must be called before any upcalls run.
func SetLogger(l *zap.Logger) {
	logger = l
}

// debug enables per-upcall entry tracing. Upcalls begin on the managed
// stack and happen frequently enough that the trace catches most stack
// changes, including at the beginning of landing pads.
var debug = false

func traceEntry(name, task string) {
	if debug {
		Logger().Sugar().Debugf("> UPCALL %s - task: %s", name, task)
	}
}

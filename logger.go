package dyncc

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// Logger returns the package logger, a no-op logger unless SetLogger was called.
func Logger() *zap.Logger {
	return logger.Load()
}

// SetLogger configures the package logger, nil restores the no-op logger.
// Compilers created before keep the logger they were created with.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

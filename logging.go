package agentstream

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggerMu sync.RWMutex
	logger   logrus.FieldLogger = newDefaultLogger()
)

// newDefaultLogger is quiet unless the application opts in: warnings only,
// written to stderr in logrus text format.
func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

// SetLogger replaces the logger used by every parser in this module.
// Passing nil restores the default.
func SetLogger(l logrus.FieldLogger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		logger = newDefaultLogger()
		return
	}
	logger = l
}

// Logger returns the module logger scoped to a component.
func Logger(component string) logrus.FieldLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger.WithField("component", component)
}

// DiscardLogger returns a logger that drops everything. Handy in tests.
func DiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

package reserve

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// LogLevel represents the logging level
type LogLevel int32

const (
	// LogLevelNone disables all logging
	LogLevelNone LogLevel = iota
	// LogLevelError enables error logging
	LogLevelError
	// LogLevelInfo enables info and error logging
	LogLevelInfo
	// LogLevelDebug enables all logging
	LogLevelDebug
)

var (
	currentLogLevel atomic.Int32
	loggerPtr       atomic.Pointer[slog.Logger]
)

func init() {
	currentLogLevel.Store(int32(LogLevelError))
	loggerPtr.Store(newDefaultLogger())
}

func newDefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// SetLogger replaces the logger used by the reserver and the packages built on it.
// Passing nil restores the default stderr logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newDefaultLogger()
	}
	loggerPtr.Store(l)
}

// SetLogLevel sets the most verbose level that is emitted
func SetLogLevel(level LogLevel) {
	currentLogLevel.Store(int32(level))
}

func enabled(level LogLevel) bool {
	return LogLevel(currentLogLevel.Load()) >= level
}

// Debug logs debug information
func Debug(format string, v ...interface{}) {
	if enabled(LogLevelDebug) {
		loggerPtr.Load().Debug(fmt.Sprintf(format, v...))
	}
}

// Info logs information
func Info(format string, v ...interface{}) {
	if enabled(LogLevelInfo) {
		loggerPtr.Load().Info(fmt.Sprintf(format, v...))
	}
}

// Error logs error information
func Error(format string, v ...interface{}) {
	if enabled(LogLevelError) {
		loggerPtr.Load().Error(fmt.Sprintf(format, v...))
	}
}

// Package log provides leveled logging for the research service.
//
// Components receive a Logger through their constructors so tests can swap in
// a silent or capturing implementation. A package-level default logger is
// available for code paths where threading a logger would be noise.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
)

// Level represents logging severity.
type Level int

const (
	// LevelDebug for detailed debugging information
	LevelDebug Level = iota
	// LevelInfo for general informational messages
	LevelInfo
	// LevelWarn for warning messages
	LevelWarn
	// LevelError for error messages
	LevelError
	// LevelNone disables all logging
	LevelNone
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// ParseLevel converts a level name to a Level. Unknown names map to
// LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	case "none", "NONE", "disable":
		return LevelNone
	default:
		return LevelInfo
	}
}

// Logger is the logging interface used across all packages.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// StdLogger implements Logger using Go's standard log package.
type StdLogger struct {
	logger *stdlog.Logger
	level  Level
}

// NewStdLogger creates a logger writing to stderr at the given level.
func NewStdLogger(level Level) *StdLogger {
	return &StdLogger{
		logger: stdlog.New(os.Stderr, "[inquiro] ", stdlog.LstdFlags),
		level:  level,
	}
}

// NewCustomLogger creates a logger with a custom output writer.
func NewCustomLogger(out io.Writer, level Level) *StdLogger {
	return &StdLogger{
		logger: stdlog.New(out, "[inquiro] ", stdlog.LstdFlags),
		level:  level,
	}
}

// Debug logs debug messages.
func (l *StdLogger) Debug(format string, v ...any) {
	if l.level <= LevelDebug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

// Info logs informational messages.
func (l *StdLogger) Info(format string, v ...any) {
	if l.level <= LevelInfo {
		l.logger.Printf("[INFO] "+format, v...)
	}
}

// Warn logs warning messages.
func (l *StdLogger) Warn(format string, v ...any) {
	if l.level <= LevelWarn {
		l.logger.Printf("[WARN] "+format, v...)
	}
}

// Error logs error messages.
func (l *StdLogger) Error(format string, v ...any) {
	if l.level <= LevelError {
		l.logger.Printf("[ERROR] "+format, v...)
	}
}

// NopLogger discards all log output.
type NopLogger struct{}

// Debug does nothing.
func (NopLogger) Debug(format string, v ...any) {}

// Info does nothing.
func (NopLogger) Info(format string, v ...any) {}

// Warn does nothing.
func (NopLogger) Warn(format string, v ...any) {}

// Error does nothing.
func (NopLogger) Error(format string, v ...any) {}

var defaultLogger Logger = NewStdLogger(LevelInfo)

// SetDefault sets the package-level logger.
func SetDefault(logger Logger) {
	defaultLogger = logger
}

// Default returns the current package-level logger.
func Default() Logger {
	return defaultLogger
}

// Debug logs a debug message using the package-level logger.
func Debug(format string, v ...any) {
	defaultLogger.Debug(format, v...)
}

// Info logs an informational message using the package-level logger.
func Info(format string, v ...any) {
	defaultLogger.Info(format, v...)
}

// Warn logs a warning message using the package-level logger.
func Warn(format string, v ...any) {
	defaultLogger.Warn(format, v...)
}

// Error logs an error message using the package-level logger.
func Error(format string, v ...any) {
	defaultLogger.Error(format, v...)
}

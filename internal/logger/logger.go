// Package logger provides leveled structured logging. A handle is created
// once at startup and passed explicitly to each component; there is no
// ambient package-level logger.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger provides leveled logging around the standard log package.
type Logger struct {
	level  Level
	logger *log.Logger
}

// New creates a logger writing to stderr with the given level and format.
// Unknown levels default to info.
func New(level string, format string) *Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter creates a logger writing to w. Tests use this to capture
// output.
func NewWithWriter(w io.Writer, level string, format string) *Logger {
	var l Level
	switch strings.ToLower(level) {
	case "debug":
		l = DebugLevel
	case "info":
		l = InfoLevel
	case "warn":
		l = WarnLevel
	case "error":
		l = ErrorLevel
	default:
		l = InfoLevel
	}

	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	return &Logger{
		level:  l,
		logger: log.New(w, "", flags),
	}
}

// Nop returns a logger that discards everything. Default for tests and
// optional components.
func Nop() *Logger {
	return &Logger{level: ErrorLevel + 1, logger: log.New(io.Discard, "", 0)}
}

func (l *Logger) output(level Level, tag, format string, args ...interface{}) {
	if l == nil || l.level > level {
		return
	}
	_ = l.logger.Output(3, fmt.Sprintf(tag+format, args...))
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(DebugLevel, "[DEBUG] ", format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.output(InfoLevel, "[INFO] ", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.output(WarnLevel, "[WARN] ", format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.output(ErrorLevel, "[ERROR] ", format, args...)
}

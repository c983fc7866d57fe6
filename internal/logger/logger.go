// Package logger provides leveled logging for tsm.
//
// Log output goes to stderr, separate from the user-facing output that goes
// to stdout, so verbose debugging never corrupts --json output. Records are
// produced by zerolog; the console format is
//
//	[LEVEL] YYYY-MM-DD HH:MM:SS message key=value ...
//
// and SetJSON switches to one JSON object per line for the API server.
//
// # Initialization
//
//	logger.Init(verbose)  // verbose=true enables Debug level
//
// By default only Warn and Error messages are shown.
//
// # Usage
//
//	logger.Debug("Loading config from %s", path)
//	logger.InfoFields("Rendered config", map[string]interface{}{
//	    "template": "reverse-proxy.txt",
//	    "path":     "/etc/nginx/sites-available/example.com",
//	})
//
// HTTP middleware that wants the underlying zerolog instance uses Zerolog().
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level represents a logging severity level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
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
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Logger handles leveled logging with thread-safe output.
type Logger struct {
	mu     sync.Mutex
	level  Level
	output io.Writer
	json   bool
	zl     zerolog.Logger
}

// Global logger instance.
var std = newLogger(os.Stderr, LevelWarn)

func newLogger(w io.Writer, level Level) *Logger {
	l := &Logger{level: level, output: w}
	l.rebuild()
	return l
}

// rebuild recreates the zerolog instance; callers hold l.mu.
func (l *Logger) rebuild() {
	out := l.output
	if out == nil {
		out = os.Stderr
	}
	out = zerolog.SyncWriter(out)

	if l.json {
		l.zl = zerolog.New(out).Level(l.level.zerolog()).With().Timestamp().Logger()
		return
	}

	cw := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: "2006-01-02 15:04:05",
		PartsOrder: []string{
			zerolog.LevelFieldName,
			zerolog.TimestampFieldName,
			zerolog.MessageFieldName,
		},
		FormatLevel: func(i interface{}) string {
			s, _ := i.(string)
			return "[" + strings.ToUpper(s) + "]"
		},
	}
	l.zl = zerolog.New(cw).Level(l.level.zerolog()).With().Timestamp().Logger()
}

// Init initializes the global logger with the specified verbosity.
// When verbose is true, Debug and Info levels are enabled.
func Init(verbose bool) {
	if verbose {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelWarn)
	}
}

// SetLevel sets the minimum log level for the global logger.
func SetLevel(level Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = level
	std.rebuild()
}

// SetOutput sets the output destination for the global logger.
// A nil writer restores os.Stderr.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.output = w
	std.rebuild()
}

// SetJSON switches between console and JSON line output.
func SetJSON(enabled bool) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.json = enabled
	std.rebuild()
}

// GetLevel returns the current log level.
func GetLevel() Level {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.level
}

// Zerolog returns a copy of the underlying zerolog logger.
func Zerolog() zerolog.Logger {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.zl
}

func (l *Logger) event(level Level) *zerolog.Event {
	l.mu.Lock()
	zl := l.zl
	l.mu.Unlock()

	switch level {
	case LevelDebug:
		return zl.Debug()
	case LevelInfo:
		return zl.Info()
	case LevelWarn:
		return zl.Warn()
	default:
		return zl.Error()
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	ev := l.event(level)
	if ev == nil {
		return
	}
	ev.Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) logFields(level Level, msg string, fields map[string]interface{}) {
	ev := l.event(level)
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	std.log(LevelDebug, format, args...)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	std.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	std.log(LevelWarn, format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	std.log(LevelError, format, args...)
}

// DebugFields logs a debug message with structured fields.
func DebugFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelDebug, msg, fields)
}

// InfoFields logs an informational message with structured fields.
func InfoFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelInfo, msg, fields)
}

// WarnFields logs a warning message with structured fields.
func WarnFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelWarn, msg, fields)
}

// ErrorFields logs an error message with structured fields.
func ErrorFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelError, msg, fields)
}

// LogError logs an error with additional context message.
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	std.log(LevelError, "%s: %v", msg, err)
}

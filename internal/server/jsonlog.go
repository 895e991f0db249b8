// jsonlog.go - Structured logging backed by zerolog.
package server

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger writes leveled entries with a fields map, as JSON or as console
// text.
type Logger struct {
	zl zerolog.Logger
}

var (
	// DefaultLogger is the global logger instance
	DefaultLogger *Logger
)

func init() {
	enableJSON := os.Getenv("SFD_LOG_FORMAT") == "json" || os.Getenv("SFD_ENV") == "production"
	DefaultLogger = NewLogger(os.Stdout, getLogLevel(), enableJSON)
}

// NewLogger builds a logger writing to w at or above level.
func NewLogger(w io.Writer, level LogLevel, enableJSON bool) *Logger {
	out := w
	if !enableJSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	zl := zerolog.New(out).Level(level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// getLogLevel returns the configured log level from environment
func getLogLevel() LogLevel {
	switch level := LogLevel(os.Getenv("SFD_LOG_LEVEL")); level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return level
	default:
		return LogLevelInfo
	}
}

func (l *Logger) log(level LogLevel, msg string, fields map[string]any, err error) {
	ev := l.zl.WithLevel(level.zerolog())
	if ev == nil {
		return
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Fields(fields).Msg(msg)
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.log(LogLevelDebug, msg, fields, nil) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.log(LogLevelInfo, msg, fields, nil) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(LogLevelWarn, msg, fields, nil) }

func (l *Logger) Error(msg string, fields map[string]any, err error) {
	l.log(LogLevelError, msg, fields, err)
}

// Global logging functions

func Debug(msg string, fields map[string]any) { DefaultLogger.Debug(msg, fields) }
func Info(msg string, fields map[string]any)  { DefaultLogger.Info(msg, fields) }
func Warn(msg string, fields map[string]any)  { DefaultLogger.Warn(msg, fields) }

func Error(msg string, fields map[string]any, err error) {
	DefaultLogger.Error(msg, fields, err)
}

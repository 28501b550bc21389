// Package logger is the pluggable logging sink shared by the folio packages.
//
// Callers install a single LogFunc that receives every level; the default
// discards everything. Components that need their own sink (a reader opened
// with a custom logger, for instance) carry a *Logger instead of using the
// package-level functions.
package logger

import (
	"log/slog"
	"sync/atomic"
)

// LogLevel represents log severity
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LogFunc is a single logger function that handles all levels
type LogFunc func(level LogLevel, msg string, keyvals ...interface{})

func discard(LogLevel, string, ...interface{}) {}

var global atomic.Value

func init() {
	global.Store(LogFunc(discard))
}

// SetLogger sets the global logger function. A nil function is ignored.
func SetLogger(f LogFunc) {
	if f != nil {
		global.Store(f)
	}
}

func current() LogFunc {
	return global.Load().(LogFunc)
}

// Debug logs a message at debug level
func Debug(msg string, keyvals ...interface{}) {
	current()(DebugLevel, msg, keyvals...)
}

// Warn logs a message at warn level
func Warn(msg string, keyvals ...interface{}) {
	current()(WarnLevel, msg, keyvals...)
}

// Error logs a message at error level
func Error(msg string, keyvals ...interface{}) {
	current()(ErrorLevel, msg, keyvals...)
}

// Logger routes messages to a specific LogFunc, falling back to the global
// function when none was given. The zero value and a nil *Logger are usable.
type Logger struct {
	fn     LogFunc
	prefix []interface{}
}

// New returns a Logger writing to fn.
func New(fn LogFunc) *Logger {
	return &Logger{fn: fn}
}

// With returns a Logger that prepends keyvals to every message.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	var fn LogFunc
	var prefix []interface{}
	if l != nil {
		fn = l.fn
		prefix = append(prefix, l.prefix...)
	}
	return &Logger{fn: fn, prefix: append(prefix, keyvals...)}
}

func (l *Logger) log(level LogLevel, msg string, keyvals []interface{}) {
	fn := current()
	if l == nil {
		fn(level, msg, keyvals...)
		return
	}
	if l.fn != nil {
		fn = l.fn
	}
	if len(l.prefix) > 0 {
		keyvals = append(append([]interface{}{}, l.prefix...), keyvals...)
	}
	fn(level, msg, keyvals...)
}

// Debug logs a message at debug level
func (l *Logger) Debug(msg string, keyvals ...interface{}) { l.log(DebugLevel, msg, keyvals) }

// Warn logs a message at warn level
func (l *Logger) Warn(msg string, keyvals ...interface{}) { l.log(WarnLevel, msg, keyvals) }

// Error logs a message at error level
func (l *Logger) Error(msg string, keyvals ...interface{}) { l.log(ErrorLevel, msg, keyvals) }

// FromSlog adapts a *slog.Logger to a LogFunc.
func FromSlog(s *slog.Logger) LogFunc {
	return func(level LogLevel, msg string, keyvals ...interface{}) {
		switch level {
		case ErrorLevel:
			s.Error(msg, keyvals...)
		case WarnLevel:
			s.Warn(msg, keyvals...)
		default:
			s.Debug(msg, keyvals...)
		}
	}
}

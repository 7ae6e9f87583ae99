// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// Messages are printf-formatted and written through log/slog so that both the
// human-readable text format and the line-delimited JSON format are available.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a config string to a Level. Unknown values map to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging with optional key/value context
type Logger struct {
	level   Level
	handler slog.Handler
}

var (
	// Global logger instance
	defaultLogger *Logger
)

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	defaultLogger = New(os.Stderr, level, format)
}

// New builds a Logger writing to w. Format is "json" or "text".
func New(w io.Writer, level string, format string) *Logger {
	l := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     l.slogLevel(),
		AddSource: strings.ToLower(format) == "text",
	}

	var h slog.Handler
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return &Logger{level: l, handler: h}
}

// With returns a logger that attaches the given key/value pairs to every line.
// Without an initialized default logger the returned logger discards output.
func With(args ...any) *Logger {
	if defaultLogger == nil {
		return nil
	}
	return defaultLogger.With(args...)
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{level: l.level, handler: l.handler.WithAttrs(argsToAttrs(args))}
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

func (l *Logger) output(level Level, format string, args []any) {
	if l == nil || level < l.level {
		return
	}
	ctx := context.Background()
	if !l.handler.Enabled(ctx, level.slogLevel()) {
		return
	}

	// skip runtime.Callers, output and the level method
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), level.slogLevel(), fmt.Sprintf(format, args...), pcs[0])
	_ = l.handler.Handle(ctx, r)
}

// Debug logs a message at DebugLevel
func (l *Logger) Debug(format string, args ...any) { l.output(DebugLevel, format, args) }

// Info logs a message at InfoLevel
func (l *Logger) Info(format string, args ...any) { l.output(InfoLevel, format, args) }

// Warn logs a message at WarnLevel
func (l *Logger) Warn(format string, args ...any) { l.output(WarnLevel, format, args) }

// Error logs a message at ErrorLevel
func (l *Logger) Error(format string, args ...any) { l.output(ErrorLevel, format, args) }

// Debug logs a message at DebugLevel
func Debug(format string, args ...any) { defaultLogger.output(DebugLevel, format, args) }

// Info logs a message at InfoLevel
func Info(format string, args ...any) { defaultLogger.output(InfoLevel, format, args) }

// Warn logs a message at WarnLevel
func Warn(format string, args ...any) { defaultLogger.output(WarnLevel, format, args) }

// Error logs a message at ErrorLevel
func Error(format string, args ...any) { defaultLogger.output(ErrorLevel, format, args) }

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.output(ErrorLevel, "FATAL: "+format, args)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", args...)
	}
	os.Exit(1)
}

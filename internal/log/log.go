// Package log is a small leveled key/value logger on top of log/slog.
//
// Call shape: Info("msg", "key", value, ...) and Error("msg", err, "key", value, ...).
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

type ctxKey struct{}

var (
	mu       sync.RWMutex
	level    = new(slog.LevelVar)
	logger   = newLogger(os.Stderr, "text")
	loggerKV = ctxKey{}
)

func newLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init configures the global logger with a level ("debug", "info", "warn",
// "error") and a format ("text" or "json"), writing to stderr.
func Init(lvl, format string) {
	InitWriter(os.Stderr, lvl, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, lvl, format string) {
	level.Set(parseLevel(lvl))
	l := newLogger(w, format)

	mu.Lock()
	logger = l
	mu.Unlock()
}

// SetLevel changes the minimum level of the global logger.
func SetLevel(l Level) {
	level.Set(parseLevel(string(l)))
}

// L returns the global logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKV).(*slog.Logger); ok {
			return l
		}
	}
	return L()
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKV, l)
}

func Debug(msg string, kv ...any) { L().Debug(msg, kv...) }

func Info(msg string, kv ...any) { L().Info(msg, kv...) }

func Warn(msg string, kv ...any) { L().Warn(msg, kv...) }

// Error logs at error level with err prepended to the key/value pairs.
func Error(msg string, err error, kv ...any) {
	extended := append([]any{"err", err}, kv...)
	L().Error(msg, extended...)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedactURL keeps only the scheme and host of u for logging.
//
//	https://example.com/path/to/private?token=abcd -> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexAny(rest, "/?#"); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}

// Package logging provides the logger port handed to the game and to every
// running story, backed by log/slog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LevelVerbose sits between debug and info.
const LevelVerbose = slog.Level(-2)

// Logger is the logging port. Args are slog key/value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Verbose(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Log is the slog-backed Logger.
type Log struct {
	l *slog.Logger
}

func New(h slog.Handler) *Log {
	return &Log{l: slog.New(h)}
}

// Discard returns a Logger that drops everything.
func Discard() *Log {
	return New(slog.NewTextHandler(io.Discard, nil))
}

// Named returns a logger tagged with the given namespace.
func (l *Log) Named(ns string) *Log {
	return &Log{l: l.l.With("ns", ns)}
}

// With returns a logger carrying the given attributes.
func (l *Log) With(args ...any) *Log {
	return &Log{l: l.l.With(args...)}
}

func (l *Log) Error(msg string, args ...any)   { l.log(slog.LevelError, msg, args) }
func (l *Log) Warn(msg string, args ...any)    { l.log(slog.LevelWarn, msg, args) }
func (l *Log) Info(msg string, args ...any)    { l.log(slog.LevelInfo, msg, args) }
func (l *Log) Verbose(msg string, args ...any) { l.log(LevelVerbose, msg, args) }
func (l *Log) Debug(msg string, args ...any)   { l.log(slog.LevelDebug, msg, args) }

func (l *Log) log(level slog.Level, msg string, args []any) {
	l.l.Log(context.Background(), level, msg, args...)
}

// NewHandler returns a text handler that names LevelVerbose properly.
func NewHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelVerbose {
					a.Value = slog.StringValue("VERBOSE")
				}
			}
			return a
		},
	})
}

// ParseLevel accepts error, warn, info, verbose and debug.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "verbose":
		return LevelVerbose, nil
	case "debug":
		return slog.LevelDebug, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

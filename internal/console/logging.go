// SPDX-License-Identifier: MPL-2.0

package console

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures NewLogger.
type LogOptions struct {
	// Verbose lowers the console threshold to debug.
	Verbose bool
	// File enables a rotating JSON log at this path when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logs are the process loggers.
type Logs struct {
	// Logger writes to the console and, when configured, to the log file.
	Logger *slog.Logger
	// File writes to the log file only. It is nil when no file is configured.
	File *slog.Logger

	closer io.Closer
}

// Close flushes and closes the rotating file, if any.
func (l *Logs) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// NewLogger builds the process loggers. Console records go to stderr at warn
// level, or debug when verbose; the optional file receives everything.
func NewLogger(stderr io.Writer, opts LogOptions) *Logs {
	level := log.WarnLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	consoleLogger := log.NewWithOptions(stderr, log.Options{
		Prefix:          Prefix,
		Level:           level,
		ReportTimestamp: opts.Verbose,
	})
	consoleLogger.SetStyles(levelStyles())

	if opts.File == "" {
		return &Logs{Logger: slog.New(consoleLogger)}
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Logs{
		Logger: slog.New(teeHandler{consoleLogger, fileHandler}),
		File:   slog.New(fileHandler),
		closer: file,
	}
}

// teeHandler fans records out to every handler enabled for their level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

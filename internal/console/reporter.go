// SPDX-License-Identifier: MPL-2.0

package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/log"
)

// Prefix labels every console line.
const Prefix = "trondev"

type (
	// Reporter prints provisioning status lines. It is safe for concurrent use.
	Reporter struct {
		mu     sync.Mutex
		out    io.Writer
		logger *log.Logger
		mirror *slog.Logger
	}

	// ReporterOption configures a Reporter.
	ReporterOption func(*Reporter)
)

// WithMirror copies every reported line into logger at a matching level.
func WithMirror(logger *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		r.mirror = logger
	}
}

// NewReporter creates a Reporter writing to out.
func NewReporter(out io.Writer, opts ...ReporterOption) *Reporter {
	logger := log.NewWithOptions(out, log.Options{
		Prefix: Prefix,
		Level:  log.InfoLevel,
	})
	logger.SetStyles(levelStyles())

	r := &Reporter{out: out, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Success reports a completed step.
func (r *Reporter) Success(msg string) {
	r.logger.Print(successStyle.Render(msg))
	r.record(slog.LevelInfo, "success", msg)
}

// Warn reports a recoverable problem.
func (r *Reporter) Warn(msg string) {
	r.logger.Warn(msg)
	r.record(slog.LevelWarn, "warn", msg)
}

// Error reports a failed step.
func (r *Reporter) Error(msg string) {
	r.logger.Error(msg)
	r.record(slog.LevelError, "error", msg)
}

// Info reports a hint.
func (r *Reporter) Info(msg string) {
	r.logger.Info(msg)
	r.record(slog.LevelInfo, "info", msg)
}

// Progress reports a long-running step that has started.
func (r *Reporter) Progress(msg string) {
	r.logger.Print(progressStyle.Render(msg))
	r.record(slog.LevelInfo, "progress", msg)
}

// Msg prints msg verbatim, without prefix or level.
func (r *Reporter) Msg(msg string) {
	r.mu.Lock()
	fmt.Fprintln(r.out, msg)
	r.mu.Unlock()
	r.record(slog.LevelDebug, "msg", msg)
}

func (r *Reporter) record(level slog.Level, kind, msg string) {
	if r.mirror == nil {
		return
	}
	r.mirror.Log(context.Background(), level, msg, slog.String("kind", kind))
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package logging provides structured logging with OpenTelemetry trace context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a logger.
type Options struct {
	Service string
	Version string
	Format  string // "json" (default) or "text"
	Level   slog.Level
	Writer  io.Writer // defaults to os.Stderr
}

// traceHandler stamps every record with the service identity and, when the
// context carries a span, its trace and span ids.
type traceHandler struct {
	next    slog.Handler
	service string
	version string
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", sc.TraceID().String()))
	}
	if sc.HasSpanID() {
		r.AddAttrs(slog.String("span_id", sc.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.next.Handle(ctx, r)
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{next: h.next.WithAttrs(attrs), service: h.service, version: h.version}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{next: h.next.WithGroup(name), service: h.service, version: h.version}
}

// New creates a logger from opts.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: opts.Level}
	var base slog.Handler
	if opts.Format == "text" {
		base = slog.NewTextHandler(w, hopts)
	} else {
		base = slog.NewJSONHandler(w, hopts)
	}

	return slog.New(&traceHandler{next: base, service: opts.Service, version: opts.Version})
}

// ParseLevel maps debug, info, warn, or error to a slog level. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, oops.Code("LOG_LEVEL_INVALID").With("level", s).Wrap(err)
	}
	return l, nil
}

// SetDefault builds a logger from opts, installs it as slog's default, and
// returns it.
func SetDefault(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package errutil holds helpers for working with oops errors across Zombify.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err with its oops code and context expanded into attributes.
// Plain errors are logged with only the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a context, so trace ids reach the handler.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.ErrorContext(ctx, msg, "error", err)
		return
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if domain := oopsErr.Domain(); domain != "" {
		attrs = append(attrs, "domain", domain)
	}
	if kv := oopsErr.Context(); len(kv) > 0 {
		attrs = append(attrs, "context", kv)
	}
	logger.ErrorContext(ctx, msg, attrs...)
}

// Code returns the oops error code carried by err, or "" when err has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// HasCode reports whether err carries the given oops code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package permit

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/engine"
	"github.com/zombify/zombify/pkg/errutil"
)

// mapError converts an SDK error into an engine error. Errors that already
// carry an engine code pass through unchanged.
func mapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch errutil.Code(err) {
	case engine.CodeNotFound, engine.CodeConflict, engine.CodeUnavailable, engine.CodeRejected:
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return engine.ErrUnavailable(operation, err)
	}

	sdk := sdkErrorCode(err)
	return oops.Code(classify(sdk)).
		With("operation", operation).
		With("sdk_code", sdk).
		Wrapf(err, "%s", operation)
}

// classify maps an SDK error code onto the engine taxonomy. Codes are
// compared without case or underscores.
func classify(sdkCode string) string {
	c := strings.ToLower(strings.ReplaceAll(sdkCode, "_", ""))
	switch {
	case c == "":
		return engine.CodeUnavailable
	case strings.Contains(c, "notfound"):
		return engine.CodeNotFound
	case strings.Contains(c, "conflict"), strings.Contains(c, "duplicate"):
		return engine.CodeConflict
	case strings.Contains(c, "unexpected"),
		strings.Contains(c, "connection"),
		strings.Contains(c, "timeout"),
		strings.Contains(c, "toomanyrequests"),
		strings.Contains(c, "unavailable"),
		strings.Contains(c, "server"):
		return engine.CodeUnavailable
	default:
		return engine.CodeRejected
	}
}

// sdkErrorCode returns the ErrorCode field of the first error in the chain
// that has one. The SDK's error type exposes the code only as a field.
func sdkErrorCode(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		v := reflect.ValueOf(e)
		if v.Kind() == reflect.Pointer && v.IsNil() {
			continue
		}
		v = reflect.Indirect(v)
		if v.Kind() != reflect.Struct {
			continue
		}
		if f := v.FieldByName("ErrorCode"); f.IsValid() && f.Kind() == reflect.String {
			return f.String()
		}
	}
	return ""
}

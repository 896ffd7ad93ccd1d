// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package tool

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/zombify/zombify/pkg/errutil"
)

// Error codes for dispatch failures.
const (
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeNoCaller         = "NO_CALLER"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeInvalidArgs      = "INVALID_ARGS"
	CodeDuplicateTool    = "DUPLICATE_TOOL"
	CodeInvalidTool      = "INVALID_TOOL"
)

// Category groups failures for the agent.
type Category string

// Failure categories.
const (
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryForbidden  Category = "forbidden"
	CategoryConflict   Category = "conflict"
	CategoryTransient  Category = "transient"
	CategoryInternal   Category = "internal"
)

// categories maps error codes raised anywhere below the dispatcher.
var categories = map[string]Category{
	CodeInvalidArgs:                   CategoryValidation,
	"POLICY_MALFORMED":                CategoryValidation,
	"STORY_STATE_MALFORMED":           CategoryValidation,
	"ACCESS_INVALID_QUERY":            CategoryValidation,
	"PLAYER_INVALID_ID":               CategoryValidation,
	"ENGINE_REJECTED":                 CategoryValidation,
	CodeUnknownTool:                   CategoryNotFound,
	"ENGINE_NOT_FOUND":                CategoryNotFound,
	"STORY_STATE_NOT_FOUND":           CategoryNotFound,
	"STORY_STATE_USER_NOT_REGISTERED": CategoryNotFound,
	CodeNoCaller:                      CategoryForbidden,
	CodePermissionDenied:              CategoryForbidden,
	"ENGINE_CONFLICT":                 CategoryConflict,
	"ENGINE_UNAVAILABLE":              CategoryTransient,
	"DB_CONNECT_FAILED":               CategoryTransient,
}

// ErrUnknownTool creates an error for a tool name that is not registered.
func ErrUnknownTool(name string) error {
	return oops.Code(CodeUnknownTool).
		With("tool", name).
		Errorf("unknown tool: %s", name)
}

// ErrNoCaller creates an error for a call without an authenticated caller.
func ErrNoCaller(name string) error {
	return oops.Code(CodeNoCaller).
		With("tool", name).
		Errorf("no authenticated caller for tool %s", name)
}

// ErrPermissionDenied creates an error for a caller lacking the tool grant.
func ErrPermissionDenied(name string, g Grant) error {
	return oops.Code(CodePermissionDenied).
		With("tool", name).
		With("grant", g.String()).
		Errorf("permission denied for tool %s: requires %s on %s", name, g.Action, g.Resource)
}

// Classify returns the category of err and whether retrying may succeed.
func Classify(err error) (Category, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient, true
	}
	if errors.Is(err, context.Canceled) {
		return CategoryInternal, false
	}
	cat, ok := categories[errutil.Code(err)]
	if !ok {
		return CategoryInternal, false
	}
	return cat, cat == CategoryTransient
}

// ErrorResult renders err as a tool result. The text is the underlying error
// message, unchanged.
func ErrorResult(err error) *Result {
	cat, retryable := Classify(err)
	r := Text(err.Error())
	r.IsError = true
	r.Category = cat
	r.Retryable = retryable
	return r
}

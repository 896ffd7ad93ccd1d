// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package engine

import (
	"github.com/samber/oops"
)

// Error codes returned by Engine implementations.
const (
	CodeNotFound    = "ENGINE_NOT_FOUND"
	CodeConflict    = "ENGINE_CONFLICT"
	CodeUnavailable = "ENGINE_UNAVAILABLE"
	CodeRejected    = "ENGINE_REJECTED"
)

// ErrNotFound creates an error for a missing role, resource, user, or tenant.
func ErrNotFound(kind, key string) error {
	return oops.Code(CodeNotFound).
		With("kind", kind).
		With("key", key).
		Errorf("%s %q not found", kind, key)
}

// ErrConflict creates an error for a duplicate key.
func ErrConflict(kind, key string) error {
	return oops.Code(CodeConflict).
		With("kind", kind).
		With("key", key).
		Errorf("%s %q already exists", kind, key)
}

// ErrUnavailable wraps a transport failure or upstream 5xx.
func ErrUnavailable(operation string, cause error) error {
	return oops.Code(CodeUnavailable).
		With("operation", operation).
		Wrap(cause)
}

// ErrRejected creates an error for a request the engine refused as invalid.
func ErrRejected(operation, reason string) error {
	return oops.Code(CodeRejected).
		With("operation", operation).
		Errorf("%s rejected: %s", operation, reason)
}

// IsNotFound reports whether err carries the ENGINE_NOT_FOUND code.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsConflict reports whether err carries the ENGINE_CONFLICT code.
func IsConflict(err error) bool {
	return hasCode(err, CodeConflict)
}

// IsUnavailable reports whether err carries the ENGINE_UNAVAILABLE code.
func IsUnavailable(err error) bool {
	return hasCode(err, CodeUnavailable)
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}

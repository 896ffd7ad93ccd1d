// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package access

import "context"

// Caller is the authenticated identity a request runs as. The transport
// layer establishes it; no tool reads it from arguments.
type Caller struct {
	UserID string
	Email  *string
}

type callerKey struct{}

type systemSubjectKey struct{}

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored by WithCaller. ok is false when no
// caller, or a caller with an empty user id, is present.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.UserID == "" {
		return Caller{}, false
	}
	return c, true
}

// WithSystemSubject marks the context as an operator action, which bypasses
// per-tool grant checks. Only the local CLI sets it.
func WithSystemSubject(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemSubjectKey{}, true)
}

// IsSystemContext reports whether the context was marked by WithSystemSubject.
func IsSystemContext(ctx context.Context) bool {
	v, ok := ctx.Value(systemSubjectKey{}).(bool)
	return ok && v
}

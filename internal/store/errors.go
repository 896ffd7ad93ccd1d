// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package store

import "github.com/samber/oops"

// Error codes for store operations.
const (
	CodeStoryStateNotFound = "STORY_STATE_NOT_FOUND"
	CodeUserNotRegistered  = "STORY_STATE_USER_NOT_REGISTERED"
)

// ErrStoryStateNotFound creates an error for a subject without a story record.
func ErrStoryStateNotFound(subject string) error {
	return oops.Code(CodeStoryStateNotFound).
		With("subject", subject).
		Errorf("no story state for user %s", subject)
}

// ErrUserNotRegistered creates an error for a story record whose user row is missing.
func ErrUserNotRegistered(subject string, cause error) error {
	builder := oops.Code(CodeUserNotRegistered).With("subject", subject)
	if cause == nil {
		return builder.Errorf("user %s is not registered; call ensureUser first", subject)
	}
	return builder.Wrapf(cause, "user %s is not registered; call ensureUser first", subject)
}

// IsStoryStateNotFound reports whether err carries CodeStoryStateNotFound.
func IsStoryStateNotFound(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == CodeStoryStateNotFound
}

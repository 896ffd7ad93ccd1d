// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails the test unless err carries code. The code is the
// deepest one in the wrap chain, matching what Code reports.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err, "expected error with code %s", code)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	assert.Equal(t, code, Code(err), "error: %v", err)
}

// AssertErrorContext fails the test unless err carries key=value in its
// merged oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	require.Error(t, err, "expected error with context %s", key)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key, "error: %v", err)
	assert.Equal(t, value, ctx[key], "context %s", key)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package accesstest provides test helpers for access control.
package accesstest

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zombify/zombify/internal/access"
	"github.com/zombify/zombify/internal/engine"
	"github.com/zombify/zombify/internal/engine/memory"
)

// Context returns a background context authenticated as userID.
func Context(userID string) context.Context {
	return access.WithCaller(context.Background(), access.Caller{UserID: userID})
}

// Engine builds an in-memory engine where every key of grants is a user
// holding a personal role ("<user>-role") in the default tenant with the
// listed "resource:action" grants. Resources are declared with exactly the
// actions mentioned across all users.
func Engine(t testing.TB, grants map[string][]string) *memory.Engine {
	t.Helper()
	ctx := context.Background()
	e := memory.New()

	actions := map[string]map[string]struct{}{}
	for _, gs := range grants {
		for _, g := range gs {
			resource, action, ok := engine.ParseGrant(g)
			require.True(t, ok, "malformed grant %q", g)
			if actions[resource] == nil {
				actions[resource] = map[string]struct{}{}
			}
			actions[resource][action] = struct{}{}
		}
	}
	for resource, set := range actions {
		names := make([]string, 0, len(set))
		for a := range set {
			names = append(names, a)
		}
		sort.Strings(names)
		_, err := e.CreateResource(ctx, engine.ResourceSpec{Key: resource, Name: resource, Actions: engine.ActionsMap(names)})
		require.NoError(t, err)
	}

	for user, gs := range grants {
		role := user + "-role"
		_, err := e.CreateRole(ctx, engine.RoleSpec{Key: role, Name: role, Permissions: gs})
		require.NoError(t, err)
		_, err = e.SyncUser(ctx, engine.UserSpec{Key: user})
		require.NoError(t, err)
		require.NoError(t, e.AssignRole(ctx, engine.RoleAssignment{User: user, Role: role, Tenant: engine.DefaultTenant}))
	}
	return e
}

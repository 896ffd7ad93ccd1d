// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombify/zombify/internal/access"
	"github.com/zombify/zombify/internal/access/accesstest"
	"github.com/zombify/zombify/internal/access/policy"
	"github.com/zombify/zombify/internal/engine"
	"github.com/zombify/zombify/internal/engine/memory"
	"github.com/zombify/zombify/internal/player"
	"github.com/zombify/zombify/internal/store/storetest"
	"github.com/zombify/zombify/internal/story"
	"github.com/zombify/zombify/internal/tool"
)

type harness struct {
	engine     *memory.Engine
	users      *storetest.Users
	states     *storetest.StoryStates
	dispatcher *tool.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	e := memory.New()
	users := storetest.NewUsers()
	states := storetest.NewStoryStates()
	states.Users = users

	reg := tool.NewRegistry()
	accessSvc := access.NewService(e)
	require.NoError(t, Register(reg, Services{
		Policy:  policy.NewAdministrator(e, nil),
		Access:  accessSvc,
		Story:   story.NewService(states),
		Players: player.NewReconciler(e, users, nil),
	}))
	d, err := tool.NewDispatcher(reg, accessSvc)
	require.NoError(t, err)
	return &harness{engine: e, users: users, states: states, dispatcher: d}
}

// call runs a tool as userID and fails the test on an error result.
func (h *harness) call(t *testing.T, userID, name, args string) []string {
	t.Helper()
	res := h.dispatcher.Dispatch(accesstest.Context(userID), name, json.RawMessage(args))
	require.False(t, res.IsError, "%s failed: %v", name, res.Texts())
	return res.Texts()
}

// operator runs a tool through the system context.
func (h *harness) operator(t *testing.T, name, args string) []string {
	t.Helper()
	ctx := access.WithSystemSubject(accesstest.Context("operator"))
	res := h.dispatcher.Dispatch(ctx, name, json.RawMessage(args))
	require.False(t, res.IsError, "%s failed: %v", name, res.Texts())
	return res.Texts()
}

func (h *harness) fail(t *testing.T, userID, name, args string) *tool.Result {
	t.Helper()
	res := h.dispatcher.Dispatch(accesstest.Context(userID), name, json.RawMessage(args))
	require.True(t, res.IsError, "%s unexpectedly succeeded: %v", name, res.Texts())
	return res
}

func TestTools_AllRegistered(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, Register(reg, Services{}))

	names := make([]string, 0)
	for _, d := range reg.List() {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
		assert.NotEmpty(t, d.InputSchema, d.Name)
	}
	assert.ElementsMatch(t, []string{
		CreatePolicy, DeletePolicy, AddUserToPolicy,
		GetUserAvailableRolesAndPermissions, DoesUserHaveAccess, GetCurrentUserID,
		GetCurrentGameState, UpdateGameState, UpdateGameStateForUser, CreateGameState,
		EnsureUser,
	}, names)
}

func TestTools_AdminGrantOverride(t *testing.T) {
	grant := tool.Grant{Action: "administer", Resource: "world"}
	for _, tl := range Tools(Services{AdminGrant: grant}) {
		if tl.Grant != nil {
			assert.Equal(t, grant, *tl.Grant, tl.Name)
		}
	}
}

func TestEnsureUser(t *testing.T) {
	h := newHarness(t)

	out := h.call(t, "alice", EnsureUser, `{"email":"alice@example.com"}`)
	assert.Equal(t, []string{"User alice is ensured in DB and Permit.io."}, out)

	h.call(t, "alice", EnsureUser, `{}`)
	assert.Equal(t, 1, h.users.Len())
	assert.Equal(t, 1, h.users.Writes)

	user, err := h.engine.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, user.Email)
	assert.Equal(t, "alice@example.com", *user.Email)
}

func TestGetCurrentUserID(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{"Current user ID is: auth0|abc"}, h.call(t, "auth0|abc", GetCurrentUserID, ``))
}

func TestPolicyLifecycle(t *testing.T) {
	h := newHarness(t)
	h.call(t, "alice", EnsureUser, `{}`)
	h.call(t, "bob", EnsureUser, `{}`)

	out := h.call(t, "alice", CreatePolicy,
		`{"roleKey":"scavenger","permissions":[{"resource":"ruins","actions":["search","loot"]}]}`)
	assert.Equal(t, []string{"Policy scavenger created"}, out)

	out = h.operator(t, AddUserToPolicy, `{"userId":"alice","roleKey":"scavenger","tenant":"default"}`)
	assert.Equal(t, []string{"User alice added to scavenger"}, out)

	out = h.call(t, "alice", DoesUserHaveAccess, `{"action":"search","resource":"ruins"}`)
	assert.Equal(t, []string{"Permission to perform search for user is true"}, out)

	out = h.call(t, "bob", DoesUserHaveAccess, `{"action":"search","resource":"ruins"}`)
	assert.Equal(t, []string{"Permission to perform search for user is false"}, out, "denial is not an error")

	out = h.call(t, "alice", GetUserAvailableRolesAndPermissions, `{}`)
	assert.Equal(t, []string{
		`User alice permissions: {"default":{"tenant":"default","roles":["scavenger"],"permissions":["ruins:loot","ruins:search"]}} and roles: [{"role":"scavenger","tenant":"default"}]`,
	}, out)

	out = h.operator(t, DeletePolicy, `{"roleKey":"scavenger"}`)
	assert.Equal(t, []string{"Policy scavenger deleted"}, out)

	out = h.call(t, "alice", DoesUserHaveAccess, `{"action":"search","resource":"ruins"}`)
	assert.Equal(t, []string{"Permission to perform search for user is false"}, out)
}

func TestCreatePolicy_Duplicate(t *testing.T) {
	h := newHarness(t)
	h.call(t, "alice", CreatePolicy, `{"roleKey":"medic","permissions":[]}`)

	res := h.fail(t, "alice", CreatePolicy, `{"roleKey":"medic","permissions":[]}`)
	assert.Equal(t, tool.CategoryConflict, res.Category)
}

func TestCreatePolicy_InvalidArgs(t *testing.T) {
	h := newHarness(t)

	res := h.fail(t, "alice", CreatePolicy, `{"roleKey":"","permissions":[]}`)
	assert.Equal(t, tool.CategoryValidation, res.Category)

	res = h.fail(t, "alice", CreatePolicy, `{"roleKey":"medic","permissions":[{"resource":"clinic","actions":[]}]}`)
	assert.Equal(t, tool.CategoryValidation, res.Category)
}

func TestDeletePolicy_Missing(t *testing.T) {
	h := newHarness(t)

	ctx := access.WithSystemSubject(accesstest.Context("operator"))
	res := h.dispatcher.Dispatch(ctx, DeletePolicy, json.RawMessage(`{"roleKey":"ghost"}`))
	require.True(t, res.IsError)
	assert.Equal(t, tool.CategoryNotFound, res.Category)
	assert.Contains(t, res.Texts()[0], `role "ghost" not found`)
}

func TestDeletePolicy_RequiresAdminGrant(t *testing.T) {
	h := newHarness(t)
	h.call(t, "alice", EnsureUser, `{}`)
	h.call(t, "root", EnsureUser, `{}`)
	h.operator(t, CreatePolicy, `{"roleKey":"admin","permissions":[{"resource":"story_state","actions":["manage"]}]}`)
	h.operator(t, AddUserToPolicy, `{"userId":"root","roleKey":"admin","tenant":"default"}`)

	res := h.fail(t, "alice", DeletePolicy, `{"roleKey":"admin"}`)
	assert.Equal(t, tool.CategoryForbidden, res.Category)

	out := h.call(t, "root", DoesUserHaveAccess, `{"action":"manage","resource":"story_state"}`)
	assert.Equal(t, []string{"Permission to perform manage for user is true"}, out, "the admin role survives")

	out = h.call(t, "root", DeletePolicy, `{"roleKey":"admin"}`)
	assert.Equal(t, []string{"Policy admin deleted"}, out)
}

func TestAddUserToPolicy_RequiresAdminGrant(t *testing.T) {
	h := newHarness(t)
	h.call(t, "alice", EnsureUser, `{}`)
	h.call(t, "alice", CreatePolicy, `{"roleKey":"scavenger","permissions":[{"resource":"ruins","actions":["search"]}]}`)

	res := h.fail(t, "alice", AddUserToPolicy, `{"userId":"alice","roleKey":"scavenger","tenant":"default"}`)
	assert.Equal(t, tool.CategoryForbidden, res.Category)

	h.call(t, "root", EnsureUser, `{}`)
	h.operator(t, CreatePolicy, `{"roleKey":"admin","permissions":[{"resource":"story_state","actions":["manage"]}]}`)
	h.operator(t, AddUserToPolicy, `{"userId":"root","roleKey":"admin","tenant":"default"}`)

	out := h.call(t, "root", AddUserToPolicy, `{"userId":"alice","roleKey":"scavenger","tenant":"default"}`)
	assert.Equal(t, []string{"User alice added to scavenger"}, out)
}

func TestAddUserToPolicy_UnknownTenant(t *testing.T) {
	h := newHarness(t)
	h.call(t, "alice", EnsureUser, `{}`)
	h.call(t, "alice", CreatePolicy, `{"roleKey":"guard","permissions":[]}`)

	ctx := access.WithSystemSubject(accesstest.Context("operator"))
	res := h.dispatcher.Dispatch(ctx, AddUserToPolicy, json.RawMessage(`{"userId":"alice","roleKey":"guard","tenant":"mars"}`))
	assert.True(t, res.IsError)
	assert.Equal(t, tool.CategoryNotFound, res.Category)
}

func TestGetUserAvailableRolesAndPermissions_UnknownUser(t *testing.T) {
	h := newHarness(t)

	res := h.fail(t, "stranger", GetUserAvailableRolesAndPermissions, `{}`)
	assert.Equal(t, tool.CategoryNotFound, res.Category)
}

func TestGameState_NoRecord(t *testing.T) {
	h := newHarness(t)

	out := h.call(t, "alice", GetCurrentGameState, ``)
	assert.Equal(t, []string{NoGameStateText, "{}"}, out)
}

func TestGameState_Lifecycle(t *testing.T) {
	h := newHarness(t)
	h.call(t, "alice", EnsureUser, `{}`)

	out := h.call(t, "alice", CreateGameState, `{}`)
	require.Len(t, out, 2)
	assert.Equal(t, "Game state created for user alice.", out[0])
	assert.JSONEq(t, `{"memory":null,"inventory":null,"currentQuest":null}`, out[1])

	out = h.call(t, "alice", GetCurrentGameState, ``)
	require.Len(t, out, 2)
	assert.Equal(t, LoadedGameStateText, out[0])
	assert.JSONEq(t, `{"memory":{},"inventory":{},"currentQuest":null}`, out[1])

	newState, err := json.Marshal(map[string]string{
		"newState": `{"memory":{"met":["ada"]},"inventory":{"bandage":2},"currentQuest":{"id":"water"}}`,
	})
	require.NoError(t, err)
	out = h.call(t, "alice", UpdateGameState, string(newState))
	require.Len(t, out, 2)
	assert.Equal(t, "Game state updated for user alice.", out[0])
	assert.JSONEq(t, `{"memory":{"met":["ada"]},"inventory":{"bandage":2},"currentQuest":{"id":"water"}}`, out[1])

	out = h.call(t, "alice", GetCurrentGameState, ``)
	assert.JSONEq(t, `{"memory":{"met":["ada"]},"inventory":{"bandage":2},"currentQuest":{"id":"water"}}`, out[1])

	out = h.call(t, "alice", CreateGameState, `{"initialState":"{\"memory\":{}}"}`)
	assert.Equal(t, "Game state already exists for user alice.", out[0])
	assert.JSONEq(t, `{"memory":{"met":["ada"]},"inventory":{"bandage":2},"currentQuest":{"id":"water"}}`, out[1])
}

func TestCreateGameState_RequiresEnsureUser(t *testing.T) {
	h := newHarness(t)

	res := h.fail(t, "alice", CreateGameState, `{}`)
	assert.Equal(t, tool.CategoryNotFound, res.Category)
	assert.Contains(t, res.Texts()[0], "call ensureUser first")
}

func TestUpdateGameState_Errors(t *testing.T) {
	h := newHarness(t)

	res := h.fail(t, "alice", UpdateGameState, `{"newState":"{\"memory\":{}}"}`)
	assert.Equal(t, tool.CategoryNotFound, res.Category)

	res = h.fail(t, "alice", UpdateGameState, `{"newState":"[1,2]"}`)
	assert.Equal(t, tool.CategoryValidation, res.Category)

	res = h.fail(t, "alice", UpdateGameState, `{"userId":"bob","newState":"{}"}`)
	assert.Equal(t, tool.CategoryValidation, res.Category, "acting user comes from the caller only")
}

func TestUpdateGameStateForUser(t *testing.T) {
	h := newHarness(t)
	h.call(t, "bob", EnsureUser, `{}`)
	h.call(t, "bob", CreateGameState, `{}`)

	args := `{"userId":"bob","newState":"{\"inventory\":{\"axe\":1}}"}`

	res := h.fail(t, "alice", UpdateGameStateForUser, args)
	assert.Equal(t, tool.CategoryForbidden, res.Category)

	ctx := context.Background()
	_, err := h.engine.CreateResource(ctx, engine.ResourceSpec{Key: "story_state", Name: "story_state", Actions: engine.ActionsMap([]string{"manage"})})
	require.NoError(t, err)
	_, err = h.engine.CreateRole(ctx, engine.RoleSpec{Key: "gm", Name: "gm", Permissions: []string{"story_state:manage"}})
	require.NoError(t, err)
	h.call(t, "alice", EnsureUser, `{}`)
	require.NoError(t, h.engine.AssignRole(ctx, engine.RoleAssignment{User: "alice", Role: "gm", Tenant: engine.DefaultTenant}))

	out := h.call(t, "alice", UpdateGameStateForUser, args)
	assert.Equal(t, "Game state updated for user bob.", out[0])
	assert.JSONEq(t, `{"memory":null,"inventory":{"axe":1},"currentQuest":null}`, out[1])
}

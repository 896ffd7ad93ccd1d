// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

// Package handlers implements the Zombify tools and registers them.
package handlers

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/access"
	"github.com/zombify/zombify/internal/access/policy"
	"github.com/zombify/zombify/internal/player"
	"github.com/zombify/zombify/internal/story"
	"github.com/zombify/zombify/internal/tool"
)

// Tool names.
const (
	CreatePolicy                        = "createPolicy"
	DeletePolicy                        = "deletePolicy"
	AddUserToPolicy                     = "addUserToPolicy"
	GetUserAvailableRolesAndPermissions = "getUserAvailableRolesAndPermissions"
	DoesUserHaveAccess                  = "doesUserHaveAccess"
	GetCurrentUserID                    = "getCurrentUserId"
	GetCurrentGameState                 = "getCurrentGameState"
	UpdateGameState                     = "updateGameState"
	UpdateGameStateForUser              = "updateGameStateForUser"
	CreateGameState                     = "createGameState"
	EnsureUser                          = "ensureUser"
)

// DefaultAdminGrant guards the tools that act on a user other than the caller.
var DefaultAdminGrant = tool.Grant{Action: "manage", Resource: "story_state"}

// Services are the components the tools call into.
type Services struct {
	Policy  *policy.Administrator
	Access  *access.Service
	Story   *story.Service
	Players *player.Reconciler
	// AdminGrant overrides DefaultAdminGrant when non-zero.
	AdminGrant tool.Grant
}

// Tools returns every tool bound to svc.
func Tools(svc Services) []tool.Tool {
	admin := DefaultAdminGrant
	if svc.AdminGrant.Action != "" && svc.AdminGrant.Resource != "" {
		admin = svc.AdminGrant
	}
	return []tool.Tool{
		createPolicyTool(svc.Policy),
		deletePolicyTool(svc.Policy, admin),
		addUserToPolicyTool(svc.Policy, admin),
		rolesAndPermissionsTool(svc.Access),
		hasAccessTool(svc.Access),
		currentUserIDTool(),
		currentGameStateTool(svc.Story),
		updateGameStateTool(svc.Story),
		updateGameStateForUserTool(svc.Story, admin),
		createGameStateTool(svc.Story),
		ensureUserTool(svc.Players),
	}
}

// Register adds every tool to reg.
func Register(reg *tool.Registry, svc Services) error {
	for _, t := range Tools(svc) {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", oops.Wrapf(err, "encode result")
	}
	return string(b), nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package handlers

import (
	"context"
	"fmt"

	"github.com/zombify/zombify/internal/access"
	"github.com/zombify/zombify/internal/tool"
)

type hasAccessArgs struct {
	Action   string `json:"action" jsonschema:"minLength=1" jsonschema_description:"Action such as search"`
	Resource string `json:"resource" jsonschema:"minLength=1" jsonschema_description:"Resource such as ruins"`
}

func rolesAndPermissionsTool(svc *access.Service) tool.Tool {
	return tool.Tool{
		Name:        GetUserAvailableRolesAndPermissions,
		Description: "List the roles the current player holds and the actions they may perform on world resources.",
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			rp, err := svc.RolesAndPermissions(ctx, call.Caller.UserID)
			if err != nil {
				return nil, err
			}
			perms, err := marshal(rp.Permissions)
			if err != nil {
				return nil, err
			}
			roles, err := marshal(rp.Roles)
			if err != nil {
				return nil, err
			}
			return tool.Text(fmt.Sprintf("User %s permissions: %s and roles: %s", call.Caller.UserID, perms, roles)), nil
		},
	}
}

func hasAccessTool(svc *access.Service) tool.Tool {
	return tool.Tool{
		Name:        DoesUserHaveAccess,
		Description: "Check whether the current player may perform an action on a world resource.",
		Input:       hasAccessArgs{},
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			var args hasAccessArgs
			if err := call.Bind(&args); err != nil {
				return nil, err
			}
			allowed, err := svc.HasAccess(ctx, call.Caller.UserID, args.Action, args.Resource)
			if err != nil {
				return nil, err
			}
			return tool.Text(fmt.Sprintf("Permission to perform %s for user is %t", args.Action, allowed)), nil
		},
	}
}

func currentUserIDTool() tool.Tool {
	return tool.Tool{
		Name:        GetCurrentUserID,
		Description: "Return the identifier of the current player.",
		Handler: func(_ context.Context, call *tool.Call) (*tool.Result, error) {
			return tool.Text("Current user ID is: " + call.Caller.UserID), nil
		},
	}
}

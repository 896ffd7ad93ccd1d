// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package handlers

import (
	"context"
	"fmt"

	"github.com/zombify/zombify/internal/access/policy"
	"github.com/zombify/zombify/internal/tool"
)

type permissionArgs struct {
	Resource string   `json:"resource" jsonschema:"minLength=1" jsonschema_description:"Resource key such as ruins"`
	Actions  []string `json:"actions" jsonschema:"minItems=1" jsonschema_description:"Actions granted on the resource"`
}

type createPolicyArgs struct {
	RoleKey     string           `json:"roleKey" jsonschema:"minLength=1" jsonschema_description:"Role key such as scavenger"`
	Permissions []permissionArgs `json:"permissions" jsonschema_description:"Resources and actions granted to the role"`
}

type deletePolicyArgs struct {
	RoleKey string `json:"roleKey" jsonschema:"minLength=1"`
}

type addUserToPolicyArgs struct {
	UserID  string `json:"userId" jsonschema:"minLength=1"`
	RoleKey string `json:"roleKey" jsonschema:"minLength=1"`
	Tenant  string `json:"tenant" jsonschema:"minLength=1"`
}

func createPolicyTool(admin *policy.Administrator) tool.Tool {
	return tool.Tool{
		Name:        CreatePolicy,
		Description: "Create a survivor role (such as Scavenger, Medic or Guard) and grant it actions on world resources.",
		Input:       createPolicyArgs{},
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			var args createPolicyArgs
			if err := call.Bind(&args); err != nil {
				return nil, err
			}
			def := policy.Definition{Role: args.RoleKey, Permissions: make([]policy.Permission, 0, len(args.Permissions))}
			for _, p := range args.Permissions {
				def.Permissions = append(def.Permissions, policy.Permission{Resource: p.Resource, Actions: p.Actions})
			}
			if err := admin.CreatePolicy(ctx, def); err != nil {
				return nil, err
			}
			return tool.Text(fmt.Sprintf("Policy %s created", args.RoleKey)), nil
		},
	}
}

func deletePolicyTool(admin *policy.Administrator, grant tool.Grant) tool.Tool {
	return tool.Tool{
		Name:        DeletePolicy,
		Description: "Remove a survivor role from the world. Resources it referenced are kept. Requires administrative rights.",
		Input:       deletePolicyArgs{},
		Grant:       &grant,
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			var args deletePolicyArgs
			if err := call.Bind(&args); err != nil {
				return nil, err
			}
			if err := admin.DeletePolicy(ctx, args.RoleKey); err != nil {
				return nil, err
			}
			return tool.Text(fmt.Sprintf("Policy %s deleted", args.RoleKey)), nil
		},
	}
}

func addUserToPolicyTool(admin *policy.Administrator, grant tool.Grant) tool.Tool {
	return tool.Tool{
		Name:        AddUserToPolicy,
		Description: "Assign a survivor role to a player within a tenant. Requires administrative rights.",
		Input:       addUserToPolicyArgs{},
		Grant:       &grant,
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			var args addUserToPolicyArgs
			if err := call.Bind(&args); err != nil {
				return nil, err
			}
			if err := admin.AssignRole(ctx, args.UserID, args.RoleKey, args.Tenant); err != nil {
				return nil, err
			}
			return tool.Text(fmt.Sprintf("User %s added to %s", args.UserID, args.RoleKey)), nil
		},
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package handlers

import (
	"context"
	"fmt"

	"github.com/zombify/zombify/internal/player"
	"github.com/zombify/zombify/internal/tool"
)

type ensureUserArgs struct {
	Email string `json:"email,omitempty" jsonschema_description:"Optional email of the player"`
}

func ensureUserTool(players *player.Reconciler) tool.Tool {
	return tool.Tool{
		Name:        EnsureUser,
		Description: "Ensure the survivor exists in both the permission system and the game database, creating them if they are new.",
		Input:       ensureUserArgs{},
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			var args ensureUserArgs
			if err := call.Bind(&args); err != nil {
				return nil, err
			}
			email := call.Caller.Email
			if args.Email != "" {
				email = &args.Email
			}
			if _, err := players.EnsureUser(ctx, call.Caller.UserID, email); err != nil {
				return nil, err
			}
			return tool.Text(fmt.Sprintf("User %s is ensured in DB and Permit.io.", call.Caller.UserID)), nil
		},
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package handlers

import (
	"context"
	"fmt"

	"github.com/zombify/zombify/internal/story"
	"github.com/zombify/zombify/internal/tool"
)

// Sentinel texts of getCurrentGameState.
const (
	NoGameStateText     = "No existing game state found."
	LoadedGameStateText = "Loaded existing game state."
)

type updateGameStateArgs struct {
	NewState string `json:"newState" jsonschema_description:"JSON object with any of memory, inventory, currentQuest and an optional schemaVersion"`
}

type updateGameStateForUserArgs struct {
	UserID   string `json:"userId" jsonschema:"minLength=1"`
	NewState string `json:"newState" jsonschema_description:"JSON object with any of memory, inventory, currentQuest and an optional schemaVersion"`
}

type createGameStateArgs struct {
	InitialState string `json:"initialState,omitempty" jsonschema_description:"Optional JSON object with the initial memory, inventory and currentQuest"`
}

func currentGameStateTool(svc *story.Service) tool.Tool {
	return tool.Tool{
		Name:        GetCurrentGameState,
		Description: "Retrieve the player's current world state, including memory, inventory, and ongoing quest context.",
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			state, found, err := svc.Get(ctx, call.Caller.UserID)
			if err != nil {
				return nil, err
			}
			if !found {
				return tool.Text(NoGameStateText, "{}"), nil
			}
			body, err := marshal(state)
			if err != nil {
				return nil, err
			}
			return tool.Text(LoadedGameStateText, body), nil
		},
	}
}

func updatedResult(userID string, state story.State) (*tool.Result, error) {
	body, err := marshal(state)
	if err != nil {
		return nil, err
	}
	return tool.Text(fmt.Sprintf("Game state updated for user %s.", userID), body), nil
}

func updateGameStateTool(svc *story.Service) tool.Tool {
	return tool.Tool{
		Name:        UpdateGameState,
		Description: "Save the player's updated story state (memory, inventory, quest progress). Omitted fields are kept; null clears a field.",
		Input:       updateGameStateArgs{},
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			var args updateGameStateArgs
			if err := call.Bind(&args); err != nil {
				return nil, err
			}
			state, err := svc.Update(ctx, call.Caller.UserID, args.NewState)
			if err != nil {
				return nil, err
			}
			return updatedResult(call.Caller.UserID, state)
		},
	}
}

func updateGameStateForUserTool(svc *story.Service, grant tool.Grant) tool.Tool {
	return tool.Tool{
		Name:        UpdateGameStateForUser,
		Description: "Save the story state of another player. Requires administrative rights.",
		Input:       updateGameStateForUserArgs{},
		Grant:       &grant,
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			var args updateGameStateForUserArgs
			if err := call.Bind(&args); err != nil {
				return nil, err
			}
			state, err := svc.Update(ctx, args.UserID, args.NewState)
			if err != nil {
				return nil, err
			}
			return updatedResult(args.UserID, state)
		},
	}
}

func createGameStateTool(svc *story.Service) tool.Tool {
	return tool.Tool{
		Name:        CreateGameState,
		Description: "Start the player's story record if they have none. An existing record is kept as is.",
		Input:       createGameStateArgs{},
		Handler: func(ctx context.Context, call *tool.Call) (*tool.Result, error) {
			var args createGameStateArgs
			if err := call.Bind(&args); err != nil {
				return nil, err
			}
			state, created, err := svc.Create(ctx, call.Caller.UserID, args.InitialState)
			if err != nil {
				return nil, err
			}
			body, err := marshal(state)
			if err != nil {
				return nil, err
			}
			text := fmt.Sprintf("Game state created for user %s.", call.Caller.UserID)
			if !created {
				text = fmt.Sprintf("Game state already exists for user %s.", call.Caller.UserID)
			}
			return tool.Text(text, body), nil
		},
	}
}

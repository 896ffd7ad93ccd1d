// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/zombify/zombify/internal/config"
)

// NewRootCmd creates the root command. A nil deps uses the defaults.
func NewRootCmd(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = &Deps{}
	}

	cmd := &cobra.Command{
		Use:   "zombify",
		Short: "Zombify - access control and story state for a survival narrative game",
		Long: `Zombify exposes tools that let an assistant manage survivor roles,
answer access questions, and keep each player's story state.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewToolsCmd())
	cmd.AddCommand(NewCallCmd(deps))
	cmd.AddCommand(NewSeedCmd(deps))
	cmd.AddCommand(NewStatusCmd(deps))
	cmd.AddCommand(NewObserveCmd(deps))

	return cmd
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package main

import (
	"encoding/json"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/zombify/zombify/internal/tool"
	"github.com/zombify/zombify/internal/tool/handlers"
)

// NewToolsCmd creates the tools command, which prints the catalogue of
// tools with their input schemas. It needs no database or engine.
func NewToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List available tools and their input schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := tool.NewRegistry()
			if err := handlers.Register(reg, handlers.Services{}); err != nil {
				return err
			}
			data, err := json.MarshalIndent(reg.List(), "", "  ")
			if err != nil {
				return oops.With("operation", "marshal tool list").Wrap(err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package main

import (
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/zombify/zombify/internal/access/policy"
)

// NewSeedCmd creates the seed command, which creates the roles listed in a
// YAML file. Roles that already exist are skipped.
func NewSeedCmd(deps *Deps) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create roles from a seed file",
		Long: `Create every role listed in a YAML seed file in the policy engine.

Roles that already exist are reported as skipped and left unchanged, so
the command can be re-run safely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, deps, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the YAML seed file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, deps *Deps, file string) error {
	conf, err := deps.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(conf, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	f, err := os.Open(file) //nolint:gosec // operator-supplied path
	if err != nil {
		return oops.Code("SEED_PARSE_FAILED").With("path", file).Wrap(err)
	}
	defer func() { _ = f.Close() }()

	seed, err := policy.ParseSeed(f)
	if err != nil {
		return oops.With("path", file).Wrap(err)
	}

	a, err := deps.buildApp(cmd.Context(), conf, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.admin.Seed(cmd.Context(), seed)
	if result != nil {
		cmd.Printf("Created: %s\n", joinOrNone(result.Created))
		cmd.Printf("Skipped: %s\n", joinOrNone(result.Skipped))
	}
	return err
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

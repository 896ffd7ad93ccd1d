// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/zombify/zombify/internal/store"
)

// NewMigrateCmd creates the migrate command with up, down, status and
// force subcommands. Running it bare applies every pending migration.
func NewMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply, roll back, or inspect the PostgreSQL schema migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long:  `Roll back the last --steps migrations, or every migration with --steps 0.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateDown(cmd, deps, steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back (0 for all)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateStatus(cmd, deps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark a migration version as applied",
		Long: `Record VERSION as the current schema version and clear the dirty flag
without running any migration. Use it after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateForce(cmd, deps, args[0])
		},
	})

	return cmd
}

func parseForceVersion(s string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("version", s).Errorf("version must be a non-negative integer, got %q", s)
	}
	return version, nil
}

func runMigrateForce(cmd *cobra.Command, deps *Deps, arg string) error {
	version, err := parseForceVersion(arg)
	if err != nil {
		return err
	}
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := m.Force(version); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
	}
	cmd.Printf("Forced migration version to %d\n", version)
	return nil
}

func openMigrator(cmd *cobra.Command, deps *Deps) (Migrator, error) {
	cfg, err := deps.loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database url is required (--database-url or DATABASE_URL)")
	}
	m, err := deps.newMigrator(cfg.Database.URL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	return m, nil
}

func runMigrateUp(cmd *cobra.Command, deps *Deps) error {
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	version, _, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	cmd.Printf("Migrations completed successfully (version %d)\n", version)
	return nil
}

func runMigrateDown(cmd *cobra.Command, deps *Deps, steps int) error {
	if steps < 0 {
		return oops.Code("CONFIG_INVALID").With("steps", steps).Errorf("--steps must not be negative")
	}
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if steps == 0 {
		cmd.Println("Rolling back all migrations...")
		err = m.Down()
	} else {
		cmd.Printf("Rolling back %d migration(s)...\n", steps)
		err = m.Steps(-steps)
	}
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
	}
	cmd.Println("Rollback completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, deps *Deps) error {
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	version, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list applied").Wrap(err)
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", version, state)
	for _, v := range applied {
		cmd.Printf("  [x] %s\n", migrationLabel(v))
	}
	for _, v := range pending {
		cmd.Printf("  [ ] %s\n", migrationLabel(v))
	}
	return nil
}

func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil {
		return fmt.Sprintf("%06d", v)
	}
	return name
}

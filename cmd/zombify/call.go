// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package main

import (
	"encoding/json"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/zombify/zombify/internal/access"
)

type callConfig struct {
	as          string
	email       string
	args        string
	system      bool
	metricsFile string
}

// NewCallCmd creates the call command, which invokes one tool as the given
// caller and prints its content blocks.
func NewCallCmd(deps *Deps) *cobra.Command {
	cfg := &callConfig{}

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a tool as an authenticated caller",
		Long: `Invoke a tool as an authenticated caller and print its text content.

Arguments are passed as a JSON object with --args. The caller identity is
taken from --as; --system runs the call as an operator, skipping per-tool
grant checks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, deps, cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.as, "as", "", "user id of the caller")
	cmd.Flags().StringVar(&cfg.email, "email", "", "email of the caller")
	cmd.Flags().StringVar(&cfg.args, "args", "{}", "tool arguments as a JSON object")
	cmd.Flags().BoolVar(&cfg.system, "system", false, "run as an operator, bypassing tool grants")
	cmd.Flags().StringVar(&cfg.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the call")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func runCall(cmd *cobra.Command, deps *Deps, cfg *callConfig, name string) error {
	conf, err := deps.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(conf, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	args := json.RawMessage(strings.TrimSpace(cfg.args))
	if !json.Valid(args) {
		return oops.Code("INVALID_ARGS").With("tool", name).Errorf("--args is not valid JSON")
	}

	ctx := cmd.Context()
	a, err := deps.buildApp(ctx, conf, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	caller := access.Caller{UserID: cfg.as}
	if cfg.email != "" {
		email := cfg.email
		caller.Email = &email
	}
	ctx = access.WithCaller(ctx, caller)
	if cfg.system {
		ctx = access.WithSystemSubject(ctx)
	}

	res := a.dispatcher.Dispatch(ctx, name, args)
	for _, text := range res.Texts() {
		cmd.Println(text)
	}

	if cfg.metricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.metricsFile, deps.gatherer()); err != nil {
			return oops.With("operation", "write metrics", "path", cfg.metricsFile).Wrap(err)
		}
	}

	if res.IsError {
		return oops.Code("TOOL_CALL_FAILED").
			With("tool", name, "category", string(res.Category), "retryable", res.Retryable).
			Errorf("tool %s failed (%s)", name, res.Category)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/zombify/zombify/internal/config"
	"github.com/zombify/zombify/internal/observability"
)

const shutdownTimeout = 5 * time.Second

type observeConfig struct {
	addr         string
	probeTimeout time.Duration
}

// NewObserveCmd creates the observe command, which serves Prometheus
// metrics and liveness and readiness probes until interrupted.
func NewObserveCmd(deps *Deps) *cobra.Command {
	cfg := &observeConfig{}

	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Serve metrics and health probes",
		Long: `Serve Prometheus metrics on /metrics, and liveness and readiness probes on
/healthz/liveness and /healthz/readiness. Readiness runs the same backend
probes as the status command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runObserve(cmd, deps, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "127.0.0.1:9100", "listen address")
	cmd.Flags().DurationVar(&cfg.probeTimeout, "timeout", 5*time.Second, "timeout for each readiness probe")

	return cmd
}

func runObserve(cmd *cobra.Command, deps *Deps, cfg *observeConfig) error {
	conf, err := deps.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(conf, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if deps.Metrics == nil {
		deps.Metrics = prometheus.NewRegistry()
	}
	deps.registerMetrics()

	server := observability.NewServer(cfg.addr, deps.Metrics, readiness(deps, conf, cfg.probeTimeout),
		observability.WithLogger(logger),
		observability.WithReadinessTimeout(cfg.probeTimeout+time.Second))
	errCh, err := server.Start()
	if err != nil {
		return err
	}
	cmd.Printf("Serving metrics and health probes on %s\n", server.Addr())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// readiness adapts the status probes to an observability.ReadinessChecker.
func readiness(deps *Deps, conf *config.Config, timeout time.Duration) observability.ReadinessChecker {
	return func(ctx context.Context) error {
		statuses := probeAll(ctx, deps, conf, timeout)
		if !allHealthy(statuses) {
			return errUnhealthy(statuses)
		}
		return nil
	}
}

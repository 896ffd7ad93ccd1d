// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zombify/zombify/internal/config"
)

// Component names reported by status.
const (
	componentDatabase = "database"
	componentEngine   = "engine"
	componentCache    = "cache"
)

// ComponentStatus is the result of probing one backend.
type ComponentStatus struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type statusConfig struct {
	jsonOutput bool
	wait       bool
	retries    uint64
	backoff    time.Duration
	timeout    time.Duration
}

// NewStatusCmd creates the status command.
func NewStatusCmd(deps *Deps) *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of the database, policy engine and cache",
		Long: `Probe the health of every configured backend and report it.

With --wait the probes are retried with exponential backoff until all
backends are healthy or the retries run out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, deps, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().BoolVar(&cfg.wait, "wait", false, "retry until every backend is healthy")
	cmd.Flags().Uint64Var(&cfg.retries, "retries", 5, "maximum retries with --wait")
	cmd.Flags().DurationVar(&cfg.backoff, "backoff", 500*time.Millisecond, "initial backoff with --wait")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "timeout for each probe")

	return cmd
}

func runStatus(cmd *cobra.Command, deps *Deps, cfg *statusConfig) error {
	conf, err := deps.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var statuses []ComponentStatus
	probe := func(ctx context.Context) error {
		statuses = probeAll(ctx, deps, conf, cfg.timeout)
		if !allHealthy(statuses) {
			return retry.RetryableError(errUnhealthy(statuses))
		}
		return nil
	}

	if cfg.wait {
		backoff := retry.WithMaxRetries(cfg.retries, retry.NewExponential(cfg.backoff))
		err = retry.Do(ctx, backoff, probe)
	} else {
		err = probe(ctx)
	}

	output, fmtErr := formatStatus(statuses, cfg.jsonOutput)
	if fmtErr != nil {
		return fmtErr
	}
	cmd.Println(output)

	if err != nil {
		return errUnhealthy(statuses)
	}
	return nil
}

// probeAll runs every probe concurrently. Probe failures are reported in
// the statuses, never as an error.
func probeAll(ctx context.Context, deps *Deps, conf *config.Config, timeout time.Duration) []ComponentStatus {
	probes := []struct {
		name string
		fn   func(context.Context) (string, error)
	}{
		{componentDatabase, func(ctx context.Context) (string, error) { return probeDatabase(ctx, deps, conf) }},
		{componentEngine, func(ctx context.Context) (string, error) { return probeEngine(ctx, deps, conf) }},
		{componentCache, func(ctx context.Context) (string, error) { return probeCache(ctx, deps, conf) }},
	}

	statuses := make([]ComponentStatus, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			detail, err := p.fn(pctx)
			st := ComponentStatus{
				Component: p.name,
				Healthy:   err == nil,
				Detail:    detail,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				st.Error = err.Error()
			}
			statuses[i] = st
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

func probeDatabase(ctx context.Context, deps *Deps, conf *config.Config) (string, error) {
	stores, err := deps.openStores(ctx, conf.Database.URL)
	if err != nil {
		return "", err
	}
	if stores.Close != nil {
		defer stores.Close()
	}
	if stores.Ping == nil {
		return "connected", nil
	}
	if err := stores.Ping(ctx); err != nil {
		return "", oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return "connected", nil
}

func probeEngine(ctx context.Context, deps *Deps, conf *config.Config) (string, error) {
	e, err := deps.newEngine(conf)
	if err != nil {
		return "", err
	}
	p, ok := e.(Pinger)
	if !ok {
		return conf.Engine.Kind + " (in process)", nil
	}
	if err := p.Ping(ctx); err != nil {
		return "", err
	}
	return conf.Engine.Kind, nil
}

func probeCache(ctx context.Context, deps *Deps, conf *config.Config) (string, error) {
	if conf.Cache.RedisAddr == "" {
		return "disabled", nil
	}
	client := deps.newRedis(conf.Cache.RedisAddr)
	defer func() { _ = client.Close() }()
	if err := client.Ping(ctx).Err(); err != nil {
		return "", oops.Code("CACHE_UNAVAILABLE").With("addr", conf.Cache.RedisAddr).Wrap(err)
	}
	return conf.Cache.RedisAddr, nil
}

func allHealthy(statuses []ComponentStatus) bool {
	for _, s := range statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

func errUnhealthy(statuses []ComponentStatus) error {
	var failed []string
	for _, s := range statuses {
		if !s.Healthy {
			failed = append(failed, s.Component)
		}
	}
	return oops.Code("STATUS_UNHEALTHY").With("components", failed).
		Errorf("unhealthy: %s", strings.Join(failed, ", "))
}

func formatStatus(statuses []ComponentStatus, asJSON bool) (string, error) {
	if asJSON {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return "", oops.With("operation", "marshal status").Wrap(err)
		}
		return string(data), nil
	}

	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPONENT\tSTATUS\tLATENCY\tDETAIL")
	_, _ = fmt.Fprintln(w, "---------\t------\t-------\t------")
	for _, s := range statuses {
		state, detail := "healthy", s.Detail
		if !s.Healthy {
			state, detail = "unhealthy", s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%dms\t%s\n", s.Component, state, s.LatencyMS, detail)
	}
	_ = w.Flush()
	return buf.String(), nil
}

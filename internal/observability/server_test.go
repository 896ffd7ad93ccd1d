// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombify/zombify/pkg/errutil"
)

func startServer(t *testing.T, reg *prometheus.Registry, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", reg, ready)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zombify_test_calls_total",
		Help: "Calls seen by the test.",
	}, []string{"tool"})
	reg.MustRegister(calls)
	calls.WithLabelValues("ensureUser").Add(2)

	server := startServer(t, reg, nil)
	assert.Same(t, reg, server.Registry())

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `zombify_test_calls_total{tool="ensureUser"} 2`)
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, nil, func(context.Context) error { return errors.New("down") })

	status, body := get(t, server, "/healthz/liveness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body), "liveness ignores readiness")
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		ready  ReadinessChecker
		status int
		body   string
	}{
		{"nil checker", nil, http.StatusOK, "ok"},
		{"ready", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"not ready", func(context.Context) error { return errors.New("unhealthy: database") }, http.StatusServiceUnavailable, "not ready: unhealthy: database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, nil, tt.ready)

			status, body := get(t, server, "/healthz/readiness")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, strings.TrimSpace(body))
		})
	}
}

func TestServer_ReadinessTimeout(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithReadinessTimeout(10*time.Millisecond))
	_, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	status, body := get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "deadline exceeded")
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil, nil)

	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_ListenFailure(t *testing.T) {
	first := startServer(t, nil, nil)

	second := NewServer(first.Addr(), nil, nil)
	_, err := second.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_LISTEN_FAILED")

	_, err = second.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_LISTEN_FAILED")
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	assert.NoError(t, server.Stop(context.Background()))
	assert.Empty(t, server.Addr())
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for serve error")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}

func TestServer_ReadinessRateLimited(t *testing.T) {
	var probes atomic.Int32
	server := NewServer("127.0.0.1:0", nil, func(context.Context) error {
		probes.Add(1)
		return nil
	}, WithReadinessRate(2))
	_, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	for range 2 {
		status, _ := get(t, server, "/healthz/readiness")
		require.Equal(t, http.StatusOK, status)
	}
	status, _ := get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, int32(2), probes.Load(), "limited requests never reach the probes")

	status, _ = get(t, server, "/healthz/liveness")
	assert.Equal(t, http.StatusOK, status, "liveness is not limited")
}

func TestServer_UnknownRoute(t *testing.T) {
	server := startServer(t, nil, nil)

	status, _ := get(t, server, "/debug/pprof")
	assert.Equal(t, http.StatusNotFound, status)
}

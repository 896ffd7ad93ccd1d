// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package tool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status values for tool call metrics.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusNotFound         = "not_found"
	StatusPermissionDenied = "permission_denied"
	StatusInvalidArgs      = "invalid_args"
)

// ToolCalls counts tool calls by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var ToolCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "zombify_tool_calls_total",
		Help: "Total number of tool calls",
	},
	[]string{"tool", "status"},
)

// ToolDuration observes tool handler latency.
// Use RegisterMetrics to register this with a Prometheus registry.
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "zombify_tool_duration_seconds",
		Help:    "Tool call duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// RegisterMetrics registers tool package metrics with the given registry.
// Panics if registration fails.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ToolCalls)
	reg.MustRegister(ToolDuration)
}

func recordCall(tool, status string, d time.Duration) {
	ToolCalls.WithLabelValues(tool, status).Inc()
	ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func statusFor(err error) string {
	if err == nil {
		return StatusSuccess
	}
	switch cat, _ := Classify(err); cat {
	case CategoryNotFound:
		return StatusNotFound
	case CategoryForbidden:
		return StatusPermissionDenied
	case CategoryValidation:
		return StatusInvalidArgs
	default:
		return StatusError
	}
}

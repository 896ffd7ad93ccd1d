// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package permit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombify/zombify/pkg/errutil"
)

// Status labels for engine request metrics.
const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// Requests counts calls to the policy engine.
// Use RegisterMetrics to register this with a Prometheus registry.
var Requests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "zombify_engine_requests_total",
		Help: "Total number of policy engine requests",
	},
	[]string{"operation", "status"},
)

// RequestDuration observes policy engine request latency.
// Use RegisterMetrics to register this with a Prometheus registry.
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "zombify_engine_request_duration_seconds",
		Help:    "Policy engine request duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RegisterMetrics registers the adapter metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Requests)
	reg.MustRegister(RequestDuration)
}

func recordRequest(operation, status string, d time.Duration) {
	Requests.WithLabelValues(operation, status).Inc()
	RequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// statusFor labels a failed request by its engine error code.
func statusFor(err error) string {
	if code := errutil.Code(err); code != "" {
		return code
	}
	return statusFailed
}

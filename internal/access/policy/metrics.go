// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package policy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opCreatePolicy = "create_policy"
	opDeletePolicy = "delete_policy"
	opAssignRole   = "assign_role"
)

var (
	// adminOperations counts administrative operations by outcome.
	adminOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zombify_policy_admin_operations_total",
		Help: "Total number of policy administration operations",
	}, []string{"operation", "result"})

	// adminDuration tracks administrative operation latency.
	adminDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zombify_policy_admin_duration_seconds",
		Help:    "Histogram of policy administration latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// compensations counts createPolicy rollbacks by whether every step succeeded.
	compensations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zombify_policy_compensations_total",
		Help: "Total number of createPolicy rollbacks",
	}, []string{"result"})
)

// RegisterMetrics registers the administration metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(adminOperations, adminDuration, compensations)
}

func recordAdmin(operation string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	adminOperations.WithLabelValues(operation, result).Inc()
	adminDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func recordCompensation(clean bool) {
	result := "clean"
	if !clean {
		result = "partial"
	}
	compensations.WithLabelValues(result).Inc()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package cache

import "github.com/prometheus/client_golang/prometheus"

const (
	resultHit  = "hit"
	resultMiss = "miss"
)

// Lookups counts decision cache lookups by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var Lookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "zombify_decision_cache_lookups_total",
		Help: "Total number of decision cache lookups",
	},
	[]string{"result"},
)

// RegisterMetrics registers cache metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Lookups)
}

func recordLookup(result string) {
	Lookups.WithLabelValues(result).Inc()
}

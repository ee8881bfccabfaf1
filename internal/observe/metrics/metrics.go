package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal tracks executor attempts per operation and outcome
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cqlguard_attempts_total",
			Help: "Total number of operation attempts",
		},
		[]string{"operation", "outcome"},
	)

	// BreakerTransitionsTotal tracks circuit breaker state changes
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cqlguard_breaker_transitions_total",
			Help: "Total number of circuit breaker transitions",
		},
		[]string{"operation", "to"},
	)

	// BreakerOpen is 1 while the breaker for an operation is open
	BreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cqlguard_breaker_open",
			Help: "Whether the circuit breaker is currently open",
		},
		[]string{"operation"},
	)
)

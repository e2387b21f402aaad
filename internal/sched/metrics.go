package sched

import "github.com/prometheus/client_golang/prometheus"

var (
	transfersStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchmux_transfers_started_total",
			Help: "Total number of transfers registered with a scheduler.",
		},
		[]string{"engine"},
	)

	transfersCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchmux_transfers_completed_total",
			Help: "Total number of delivered completions by outcome.",
		},
		[]string{"engine", "outcome"},
	)

	responseBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchmux_response_bytes_total",
			Help: "Total response body bytes delivered to callbacks.",
		},
		[]string{"engine"},
	)

	transferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetchmux_transfer_duration_seconds",
			Help:    "Transfer duration from registration to completion delivery.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine"},
	)
)

func init() {
	prometheus.MustRegister(transfersStarted)
	prometheus.MustRegister(transfersCompleted)
	prometheus.MustRegister(responseBytes)
	prometheus.MustRegister(transferDuration)
}

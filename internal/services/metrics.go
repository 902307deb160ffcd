// Package services – Prometheus collectors for background work. HTTP-level
// metrics live in the middleware package; these counters cover the
// scheduler-driven jobs that never pass through the router.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// queueDeliveries counts outbound queue worker outcomes.
	queueDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_queue_deliveries_total",
			Help: "Outbound queue delivery attempts by result.",
		},
		[]string{"result"}, // sent | retried | failed
	)

	// followupRuns counts completed follow-up batches.
	followupRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "followup_runs_total",
			Help: "Completed follow-up scheduler batches.",
		},
	)

	// followupsSent counts follow-up messages delivered.
	followupsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "followups_sent_total",
			Help: "Follow-up messages sent.",
		},
	)
)

func init() {
	prometheus.MustRegister(queueDeliveries, followupRuns, followupsSent)
}

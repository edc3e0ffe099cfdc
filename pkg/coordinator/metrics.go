package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	backfillRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surrealshift_backfill_records_total",
			Help: "Records examined by backfill, by entity and result",
		},
		[]string{"entity", "result"},
	)

	compensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surrealshift_compensations_total",
			Help: "Journal entries settled by the reconciler, by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(backfillRecords)
	prometheus.MustRegister(compensations)
}

package migration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	writesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surrealshift_writes_total",
			Help: "Coordinated writes by entity, operation, branch and outcome",
		},
		[]string{"entity", "operation", "branch", "outcome"},
	)

	readsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surrealshift_reads_total",
			Help: "Coordinated reads by entity, operation, source and outcome",
		},
		[]string{"entity", "operation", "source", "outcome"},
	)

	validationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surrealshift_validation_failures_total",
			Help: "Attribute divergences found by dual reads",
		},
		[]string{"entity", "attribute"},
	)

	rollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surrealshift_rollbacks_total",
			Help: "Compensating rollbacks by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surrealshift_operation_duration_seconds",
			Help:    "Coordinator call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "kind"},
	)

	phaseGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "surrealshift_migration_phase",
			Help: "Current migration phase (1-5)",
		},
	)
)

func init() {
	prometheus.MustRegister(writesTotal)
	prometheus.MustRegister(readsTotal)
	prometheus.MustRegister(validationFailuresTotal)
	prometheus.MustRegister(rollbacksTotal)
	prometheus.MustRegister(operationDuration)
	prometheus.MustRegister(phaseGauge)
}

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeInvalid = "invalid"
)

// timer observes elapsed time into operationDuration.
type timer struct {
	start  time.Time
	entity string
	kind   string
}

func startTimer(entity, kind string) timer {
	return timer{start: time.Now(), entity: entity, kind: kind}
}

func (t timer) observe() {
	operationDuration.WithLabelValues(t.entity, t.kind).Observe(time.Since(t.start).Seconds())
}

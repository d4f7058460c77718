package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// VerificationsTotal counts completed verification requests by outcome.
	VerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docverify",
		Subsystem: "pipeline",
		Name:      "verifications_total",
		Help:      "Total number of verification requests processed, labeled by result.",
	}, []string{"result"})

	// VerificationDurationSeconds is end-to-end time per verification.
	VerificationDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docverify",
		Subsystem: "pipeline",
		Name:      "verification_duration_seconds",
		Help:      "End-to-end time to run the verification pipeline.",
		// Keep buckets fairly coarse to avoid high-cardinality time series.
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120, 300},
	}, []string{"result"})

	// VerificationsInFlight is the current number of pipelines running.
	VerificationsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "docverify",
		Subsystem: "pipeline",
		Name:      "verifications_in_flight",
		Help:      "Current number of verification pipelines being processed.",
	})

	// EngineFailuresTotal counts analysis engine failures by reason.
	EngineFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docverify",
		Subsystem: "pipeline",
		Name:      "engine_failures_total",
		Help:      "Total number of analysis engine failures, labeled by reason.",
	}, []string{"reason"})

	// LookupDegradedTotal counts verifications where the master lookup
	// degraded to no-match because the record store was unreachable.
	LookupDegradedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "docverify",
		Subsystem: "pipeline",
		Name:      "lookup_degraded_total",
		Help:      "Total number of master record lookups that degraded to no-match.",
	})

	// VerdictsTotal counts issued verdicts by label.
	VerdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docverify",
		Subsystem: "pipeline",
		Name:      "verdicts_total",
		Help:      "Total number of verdicts issued, labeled by verdict.",
	}, []string{"verdict"})
)

// Register registers pipeline metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			VerificationsTotal,
			VerificationDurationSeconds,
			VerificationsInFlight,
			EngineFailuresTotal,
			LookupDegradedTotal,
			VerdictsTotal,
		)
	})
}

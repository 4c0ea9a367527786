package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for visit verification.
type Metrics struct {
	EventsRecorded    *prometheus.CounterVec
	Verdicts          *prometheus.CounterVec
	FailedChecks      *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	ValidateLatency   prometheus.Histogram
	LockWait          prometheus.Histogram
}

// New registers all verification metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evv_events_recorded_total",
			Help: "Field events appended to visit logs by kind",
		}, []string{"kind"}),

		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evv_verdicts_total",
			Help: "Validation outcomes",
		}, []string{"outcome"}), // outcome: "verified", "unverified"

		FailedChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evv_failed_checks_total",
			Help: "Verification checks that failed, by check name",
		}, []string{"check"}),

		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evv_status_transitions_total",
			Help: "Visit status transitions applied by the engine",
		}, []string{"from", "to"}),

		ValidateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "evv_validate_duration_seconds",
			Help:    "Duration of a validation including store reads",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),

		LockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "evv_visit_lock_duration_seconds",
			Help:    "Time spent inside per-visit critical sections",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncEvent(kind string) {
	if m != nil {
		m.EventsRecorded.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncVerdict(verified bool) {
	if m == nil {
		return
	}
	outcome := "unverified"
	if verified {
		outcome = "verified"
	}
	m.Verdicts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncFailedChecks(checks []string) {
	if m == nil {
		return
	}
	for _, c := range checks {
		m.FailedChecks.WithLabelValues(c).Inc()
	}
}

func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) ObserveValidate(d time.Duration) {
	if m != nil {
		m.ValidateLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveLock(d time.Duration) {
	if m != nil {
		m.LockWait.Observe(d.Seconds())
	}
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncEvent("clock_in")
	m.IncEvent("clock_in")
	m.IncVerdict(true)
	m.IncVerdict(false)
	m.IncVerdict(false)
	m.IncFailedChecks([]string{"time_window", "ordering"})
	m.IncTransition("scheduled", "in_progress")
	m.ObserveValidate(time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsRecorded.WithLabelValues("clock_in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("verified")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("unverified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailedChecks.WithLabelValues("ordering")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("scheduled", "in_progress")))

	count, err := testutil.GatherAndCount(reg, "evv_validate_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncEvent("clock_out")
		m.IncVerdict(true)
		m.IncFailedChecks([]string{"schedule"})
		m.IncTransition("in_progress", "completed")
		m.ObserveValidate(time.Second)
		m.ObserveLock(time.Second)
	})
}

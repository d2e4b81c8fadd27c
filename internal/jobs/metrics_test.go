package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("depreciation_run").End(nil))
	err := m.Track("depreciation_run").End(errors.New("boom"))
	require.EqualError(t, err, "boom")
	m.AddItems("depreciation_run", "created", 3)
	m.AddItems("depreciation_run", "failed", 0)

	require.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("depreciation_run", "success")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.failures.WithLabelValues("depreciation_run")))
	require.Equal(t, float64(3), testutil.ToFloat64(m.items.WithLabelValues("depreciation_run", "created")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("noop").End(nil))
	m.AddItems("noop", "created", 1)
}

package jobmetrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	boom := errors.New("boom")

	require.NoError(t, m.Track("reports:warmup").End(nil))
	require.ErrorIs(t, m.Track("reports:warmup").End(boom), boom)

	require.Equal(t, 1.0, counterValue(t, m.runs.WithLabelValues("reports:warmup", StatusSuccess)))
	require.Equal(t, 1.0, counterValue(t, m.runs.WithLabelValues("reports:warmup", StatusFailure)))
	require.Equal(t, 1.0, counterValue(t, m.failures.WithLabelValues("reports:warmup")))
}

func TestTrackerMarksSkipRetryAsDropped(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	err := fmt.Errorf("decode payload: %w", asynq.SkipRetry)

	require.ErrorIs(t, m.Track("inventory:low-stock").End(err), asynq.SkipRetry)

	require.Equal(t, 1.0, counterValue(t, m.runs.WithLabelValues("inventory:low-stock", StatusDropped)))
	require.Equal(t, 0.0, counterValue(t, m.runs.WithLabelValues("inventory:low-stock", StatusFailure)))
	require.Equal(t, 1.0, counterValue(t, m.failures.WithLabelValues("inventory:low-stock")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	m.Enqueued("x", 3)
}

func TestEnqueued(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Enqueued("inventory:low-stock", 2)
	m.Enqueued("inventory:low-stock", 0)
	require.Equal(t, 2.0, counterValue(t, m.enqueued.WithLabelValues("inventory:low-stock")))
}

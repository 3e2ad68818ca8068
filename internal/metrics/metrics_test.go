package metrics_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/UnknownOlympus/propgeo/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	m.LookupsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	m.LookupsTotal.WithLabelValues(metrics.StatusCacheHit).Add(2)
	m.PauseSeconds.Add(1.5)

	assert.InDelta(t, 1, testutil.ToFloat64(m.LookupsTotal.WithLabelValues(metrics.StatusSuccess)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.LookupsTotal.WithLabelValues(metrics.StatusCacheHit)), 0)
	assert.InDelta(t, 1.5, testutil.ToFloat64(m.PauseSeconds), 0)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.ResultsWritten.Set(3)

	t.Run("writes registry to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "propgeo.prom")

		require.NoError(t, metrics.WriteTextfile(path, reg))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "propgeo_results_written 3")
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "propgeo.prom")

		err := metrics.WriteTextfile(path, reg)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to write metrics")
	})
}

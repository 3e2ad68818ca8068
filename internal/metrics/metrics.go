package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes used as the "status" label of LookupsTotal.
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusCacheHit = "cache_hit"
	StatusError    = "error"
)

type Metrics struct {
	LookupsTotal   *prometheus.CounterVec
	APIErrors      prometheus.Counter
	RequestSeconds *prometheus.HistogramVec
	PauseSeconds   prometheus.Counter
	ResultsWritten prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		LookupsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "propgeo_lookups_total",
			Help: "Total number of processed property names by outcome.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "propgeo_provider_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propgeo_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		PauseSeconds: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "propgeo_pause_seconds_total",
			Help: "Total time spent pausing between provider requests.",
		}),
		ResultsWritten: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "propgeo_results_written",
			Help: "Number of CSV rows written by the last run.",
		}),
	}
}

// WriteTextfile dumps every metric of the registry to path in the format read
// by the node exporter textfile collector.
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}

	return nil
}
